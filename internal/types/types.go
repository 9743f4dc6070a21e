package types

import (
	"time"
)

// TimeLayout is the wire format for schedule timestamps, a zone-less
// local date-time.
const TimeLayout = "2006-01-02T15:04:05"

type User struct {
	Id        int       `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type Room struct {
	Id            string  `json:"id"`
	Name          string  `json:"name"`
	Viewers       int     `json:"viewers"`
	IsPrivate     bool    `json:"isPrivate"`
	ScheduledTime *string `json:"scheduledTime"`
	CurrentVideo  *Video  `json:"currentVideo"`
}

type Video struct {
	Id           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Url          string `json:"url"`
	ThumbnailUrl string `json:"thumbnailUrl"`
	// Duration is nil when it was never determined at upload time.
	Duration  *int      `json:"duration"`
	CreatedAt time.Time `json:"createdAt"`
}

// FormatScheduledTime renders a schedule timestamp in the wire format.
func FormatScheduledTime(t time.Time) string {
	return t.Format(TimeLayout)
}
