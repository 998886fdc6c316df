package logging

import "log/slog"

// Common field names for consistent logging across the service.
const (
	FieldIP       = "ip"
	FieldEventID  = "event_id"
	FieldOutcome  = "outcome"
	FieldScanner  = "scanner"
	FieldMethod   = "method"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldDuration = "duration_ms"
	FieldError    = "error"
)

// IP returns a slog attribute for the source IP.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// EventID returns a slog attribute for the ledger event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// Outcome returns a slog attribute for the login outcome.
func Outcome(outcome string) slog.Attr {
	return slog.String(FieldOutcome, outcome)
}

// Err returns a slog attribute for an error value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
