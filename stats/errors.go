package stats

import (
	"errors"
	"fmt"
)

// EmptySampleSetError is returned when statistics are requested for no data.
type EmptySampleSetError struct {
	Key string
}

func (e *EmptySampleSetError) Error() string {
	if e.Key == "" {
		return "cannot summarize an empty sample set"
	}
	return fmt.Sprintf("cannot summarize an empty sample set for %q", e.Key)
}

// IsEmptySampleSet checks if the error is or wraps an EmptySampleSetError
func IsEmptySampleSet(err error) bool {
	var target *EmptySampleSetError
	return err != nil && errors.As(err, &target)
}

// RowError reports a malformed stats CSV row.
type RowError struct {
	Line   string
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("malformed stats row %q: %s", e.Line, e.Reason)
}
