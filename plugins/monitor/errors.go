package monitor

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/pinballmap"
)

var (
	ErrTargetExists         = errors.New("target is already monitored in this channel")
	ErrInvalidTargetIndex   = errors.New("invalid target index")
	ErrInvalidPollRate      = errors.New("poll rate must be at least 1 minute")
	ErrChannelNotConfigured = errors.New("channel has no monitoring configuration")
	ErrChannelNotFound      = errors.New("channel not found or not accessible")
)

// AmbiguousLocationError is returned when a location name matched several locations
type AmbiguousLocationError struct {
	Query       string
	Suggestions []pinballmap.Location
}

func (e *AmbiguousLocationError) Error() string {
	names := make([]string, len(e.Suggestions))
	for i, suggestion := range e.Suggestions {
		names[i] = fmt.Sprintf("%s (%d)", suggestion.Name, suggestion.ID)
	}
	return fmt.Sprintf("location %q is ambiguous: %s", e.Query, strings.Join(names, ", "))
}

func isUniqueViolation(err error) bool {
	switch e := errors.Cause(err).(type) {
	case *pq.Error:
		return e.Code == "23505"
	case sqlite3.Error:
		return e.ExtendedCode == sqlite3.ErrConstraintUnique ||
			e.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}
