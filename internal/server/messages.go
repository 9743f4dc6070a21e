package server

import (
	"net/http"
	"time"

	"github.com/cloudplay/go-watchparty/internal/types"
)

// Schedule message type tags.
const (
	TypeSync  = "SYNC"
	TypeStart = "START"
	TypeError = "ERROR"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Subscribe   *Subscribe   `json:"subscribe,omitempty"`
	Unsubscribe *Unsubscribe `json:"unsubscribe,omitempty"`
	Sync        *Sync        `json:"sync,omitempty"`
	client      *Client
}

type Subscribe struct {
	RoomId string `json:"room_id"`
}

type Unsubscribe struct {
	RoomId string `json:"room_id"`
}

type Sync struct {
	RoomId string `json:"room_id"`
}

// ScheduleMessage is the payload broadcast to every subscriber of a room
// topic.
type ScheduleMessage struct {
	Type          string       `json:"type"`
	RoomId        string       `json:"roomId"`
	Video         *types.Video `json:"video,omitempty"`
	ScheduledTime *string      `json:"scheduledTime,omitempty"`
}

type ServerMessage struct {
	BaseMessage
	Response *Response        `json:"response,omitempty"`
	Schedule *ScheduleMessage `json:"schedule,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
}

func NoErrOK(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func NewStartMessage(roomId string) *ScheduleMessage {
	return &ScheduleMessage{
		Type:   TypeStart,
		RoomId: roomId,
	}
}

func NewErrorMessage(roomId string) *ScheduleMessage {
	return &ScheduleMessage{
		Type:   TypeError,
		RoomId: roomId,
	}
}

func NewSyncMessage(roomId string, video *types.Video, scheduledTime *string) *ScheduleMessage {
	return &ScheduleMessage{
		Type:          TypeSync,
		RoomId:        roomId,
		Video:         video,
		ScheduledTime: scheduledTime,
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
