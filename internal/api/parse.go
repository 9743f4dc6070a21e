package api

import (
	"time"

	"github.com/cloudplay/go-watchparty/internal/types"
)

// parseTimeOrNil parses an optional local date-time field. A missing or
// malformed value defaults to absent rather than failing the request.
func parseTimeOrNil(value string) *time.Time {
	if value == "" {
		return nil
	}

	t, err := time.Parse(types.TimeLayout, value)
	if err != nil {
		return nil
	}

	return &t
}
