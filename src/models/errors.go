package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrSourceUnavailable is matched by every SourceUnavailableError via errors.Is.
var ErrSourceUnavailable = errors.New("source unavailable")

// SourceUnavailableError identifies which collaborator failed to respond.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("%s source unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}

// NewSourceUnavailable wraps err unless it already is a SourceUnavailableError.
func NewSourceUnavailable(source string, err error) error {
	var sue *SourceUnavailableError
	if errors.As(err, &sue) {
		return err
	}
	return &SourceUnavailableError{Source: source, Err: err}
}

// DateParseError is returned for a record whose date matches no accepted layout or falls outside
// the sane year bound. The record is skipped; the batch continues.
type DateParseError struct {
	Value  string
	Reason string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("invalid date %q: %s", e.Value, e.Reason)
}

// DateRange optionally narrows a transfer query. Zero values mean open-ended.
type DateRange struct {
	From time.Time
	To   time.Time
}
