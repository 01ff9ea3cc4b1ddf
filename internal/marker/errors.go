package marker

import (
	"fmt"
	"strings"
)

// ValidationError describes one invalid marker definition field.
type ValidationError struct {
	MarkerID string `json:"marker_id"`
	Field    string `json:"field"`
	Reason   string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("marker %q: %s", e.MarkerID, e.Reason)
	}
	return fmt.Sprintf("marker %q: %s: %s", e.MarkerID, e.Field, e.Reason)
}

// ValidationErrors aggregates every offending definition from a catalog
// load. A load either succeeds completely or fails with the full list.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d invalid marker definitions:", len(e))
	for _, v := range e {
		b.WriteString("\n  - ")
		b.WriteString(v.Error())
	}
	return b.String()
}

// UnknownMarkerError reports a reference to a marker id the catalog does
// not contain.
type UnknownMarkerError struct {
	MarkerID string
}

func (e *UnknownMarkerError) Error() string {
	return fmt.Sprintf("unknown marker: %s", e.MarkerID)
}

// SessionNotFoundError reports an operation against a session id that
// does not exist or has been closed.
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.SessionID)
}

// MalformedInputError reports a text chunk that could not be normalized.
// The chunk is skipped; the session continues.
type MalformedInputError struct {
	Offset int
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input at offset %d: %s", e.Offset, e.Reason)
}
