package leads

import "errors"

var (
	// ErrInvalidName is returned when the name is missing
	ErrInvalidName = errors.New("leads: name is required")

	// ErrMissingPhone is returned when the WhatsApp number is missing
	ErrMissingPhone = errors.New("leads: phone is required")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("leads: lead not found")

	// ErrLeadClosed is returned when a mutation targets an archived lead
	ErrLeadClosed = errors.New("leads: lead is closed")

	// ErrInvalidTransition is returned for a disallowed status change
	ErrInvalidTransition = errors.New("leads: invalid status transition")
)
