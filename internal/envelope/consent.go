package envelope

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the consent flag carried on a clinical record. Only the two wire
// literals "active" and "rejected" are recognised; anything else fails the
// decode instead of defaulting.
type Status string

const (
	// StatusActive permits the record to be stored downstream.
	StatusActive Status = "active"
	// StatusRejected requires removal of the subject's record downstream.
	StatusRejected Status = "rejected"
)

// UnmarshalJSON enforces the two-literal consent vocabulary at decode time.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: consent status must be a string", ErrMalformed)
	}
	switch Status(raw) {
	case StatusActive, StatusRejected:
		*s = Status(raw)
		return nil
	default:
		return fmt.Errorf("%w: unrecognised consent status %q", ErrMalformed, raw)
	}
}

// ConsentRecord is the consent judgement embedded in a request payload.
type ConsentRecord struct {
	Status    Status
	PatientID string
}

// Active reports whether the subject permits the record to be stored.
func (c ConsentRecord) Active() bool {
	return c.Status == StatusActive
}

// ExtractConsent decodes the embedded domain payload into a ConsentRecord.
// The payload must carry a consent object with a recognised status and a
// non-empty patient identifier under the exact keys "consent", "status" and
// "patient"; no case-folded spellings are accepted, and the absence of the
// consent object is a decode failure, not an implicit rejection. Pure
// function, no I/O.
func ExtractConsent(content []byte) (ConsentRecord, error) {
	if len(content) == 0 {
		return ConsentRecord{}, fmt.Errorf("%w: payload is empty", ErrMalformed)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(content, &payload); err != nil {
		return ConsentRecord{}, fmt.Errorf("%w: decode payload: %v", ErrMalformed, err)
	}

	consentRaw, ok := payload["consent"]
	if !ok || len(consentRaw) == 0 || string(consentRaw) == "null" {
		return ConsentRecord{}, fmt.Errorf("%w: payload has no consent object", ErrMalformed)
	}

	var consent map[string]json.RawMessage
	if err := json.Unmarshal(consentRaw, &consent); err != nil {
		return ConsentRecord{}, fmt.Errorf("%w: consent is not an object", ErrMalformed)
	}

	statusRaw, ok := consent["status"]
	if !ok {
		return ConsentRecord{}, fmt.Errorf("%w: consent object has no status", ErrMalformed)
	}
	var status Status
	if err := json.Unmarshal(statusRaw, &status); err != nil {
		return ConsentRecord{}, err
	}

	patientRaw, ok := consent["patient"]
	if !ok {
		return ConsentRecord{}, fmt.Errorf("%w: consent object has no patient", ErrMalformed)
	}
	var patient string
	if err := json.Unmarshal(patientRaw, &patient); err != nil {
		return ConsentRecord{}, fmt.Errorf("%w: consent patient must be a string", ErrMalformed)
	}
	if strings.TrimSpace(patient) == "" {
		return ConsentRecord{}, fmt.Errorf("%w: consent object has no patient", ErrMalformed)
	}

	return ConsentRecord{
		Status:    status,
		PatientID: patient,
	}, nil
}
