package database

import (
	"database/sql"
	"time"
)

type Room struct {
	Id             int
	ExternalId     string
	Name           string
	IsPrivate      bool
	ScheduledTime  sql.NullTime
	CurrentVideoId sql.NullInt64
	ViewerCount    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Video struct {
	Id           int
	ExternalId   string
	Title        string
	Description  string
	Url          string
	ThumbnailUrl string
	Duration     sql.NullInt64
	CreatedAt    time.Time
}

type User struct {
	Id        int
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateRoomParams struct {
	Name           string
	ExternalId     string
	IsPrivate      bool
	ScheduledTime  sql.NullTime
	CurrentVideoId sql.NullInt64
}

type CreateVideoParams struct {
	ExternalId   string
	Title        string
	Description  string
	Url          string
	ThumbnailUrl string
	Duration     sql.NullInt64
}

type CreateUserParams struct {
	Username string
}
