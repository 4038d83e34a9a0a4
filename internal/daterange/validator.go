// Path: internal/daterange/validator.go
package daterange

import (
	"fmt"
	"strings"
	"time"

	"media-search/internal/domain"
)

// Reason identifies why a date pair was rejected.
type Reason string

const (
	BadStartFormat       Reason = "BadStartFormat"
	BadEndFormat         Reason = "BadEndFormat"
	OnlyOneBoundProvided Reason = "OnlyOneBoundProvided"
	StartAfterEnd        Reason = "StartAfterEnd"
)

// Error is returned for any rejected date pair.
type Error struct {
	Reason Reason
}

func (e *Error) Error() string {
	switch e.Reason {
	case BadStartFormat:
		return "start date must be a valid date (YYYY-MM-DD)"
	case BadEndFormat:
		return "end date must be a valid date (YYYY-MM-DD)"
	case OnlyOneBoundProvided:
		return "both start and end dates must be provided, or neither"
	case StartAfterEnd:
		return "start date must be before or equal to end date"
	default:
		return fmt.Sprintf("invalid date range: %s", e.Reason)
	}
}

// Field names the input the error belongs to: "start", "end" or "range".
func (e *Error) Field() string {
	switch e.Reason {
	case BadStartFormat:
		return "start"
	case BadEndFormat:
		return "end"
	default:
		return "range"
	}
}

// Validate checks a start/end pair.
//
// Both blank yields (nil, nil). Otherwise both bounds must parse and
// start must not be after end; comparison ignores time of day. Reasons are
// checked in this order: BadStartFormat, BadEndFormat,
// OnlyOneBoundProvided, StartAfterEnd.
func Validate(start, end string) (*domain.DateRange, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return nil, nil
	}

	var s, e time.Time
	var err error
	if start != "" {
		if s, err = parseDate(start); err != nil {
			return nil, &Error{Reason: BadStartFormat}
		}
	}
	if end != "" {
		if e, err = parseDate(end); err != nil {
			return nil, &Error{Reason: BadEndFormat}
		}
	}
	if start == "" || end == "" {
		return nil, &Error{Reason: OnlyOneBoundProvided}
	}
	if s.After(e) {
		return nil, &Error{Reason: StartAfterEnd}
	}
	return &domain.DateRange{Start: s, End: e}, nil
}

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and truncates to
// the calendar date written in the input.
func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(domain.DateLayout, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
