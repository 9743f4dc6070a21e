package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"

	"github.com/cloudplay/go-watchparty/internal/database"
	"github.com/cloudplay/go-watchparty/internal/media"
	"github.com/cloudplay/go-watchparty/internal/server"
	"github.com/cloudplay/go-watchparty/internal/types"
)

// maxUploadSize bounds the in-memory portion of a multipart upload.
const maxUploadSize = 32 << 20

type CreateRoomRequest struct {
	Name          string `json:"name"`
	VideoId       string `json:"videoId"`
	ScheduledTime string `json:"scheduledTime"`
	IsPrivate     bool   `json:"isPrivate"`
}

type MembershipRequest struct {
	UserId *int `json:"userId"`
}

type CreateUserRequest struct {
	Username string `json:"username"`
}

func (s *WatchPartyApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *WatchPartyApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("ping:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *WatchPartyApp) listRooms(w http.ResponseWriter, r *http.Request) {
	dbRooms, err := s.db.ListRooms()
	if err != nil {
		s.log.Println("list rooms:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	rooms := make([]types.Room, 0, len(dbRooms))
	for _, dbRoom := range dbRooms {
		rooms = append(rooms, s.roomDTO(dbRoom))
	}

	s.writeJson(w, http.StatusOK, rooms)
}

func (s *WatchPartyApp) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.db.GetRoomByExternalId(r.PathValue("id"))
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, s.roomDTO(room))
}

func (s *WatchPartyApp) createRoom(w http.ResponseWriter, r *http.Request) {
	var createRoomReq CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&createRoomReq); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if strings.TrimSpace(createRoomReq.Name) == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.CreateRoomParams{
		Name:      createRoomReq.Name,
		IsPrivate: createRoomReq.IsPrivate,
	}

	// an unresolvable video id defaults to no current video
	if createRoomReq.VideoId != "" {
		if video, err := s.db.GetVideoByExternalId(createRoomReq.VideoId); err == nil {
			params.CurrentVideoId = sql.NullInt64{Int64: int64(video.Id), Valid: true}
		}
	}

	if t := parseTimeOrNil(createRoomReq.ScheduledTime); t != nil {
		params.ScheduledTime = sql.NullTime{Time: *t, Valid: true}
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	params.ExternalId = sid

	newRoom, err := s.db.CreateRoom(params)
	if err != nil {
		s.log.Println("create room:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, s.roomDTO(newRoom))
}

func (s *WatchPartyApp) joinRoom(w http.ResponseWriter, r *http.Request) {
	s.changeMembership(w, r, true)
}

func (s *WatchPartyApp) leaveRoom(w http.ResponseWriter, r *http.Request) {
	s.changeMembership(w, r, false)
}

// changeMembership resolves the room and user and applies an idempotent
// viewer-set insert or delete. A missing room or user is reported with a
// single not-found response, nothing more granular.
func (s *WatchPartyApp) changeMembership(w http.ResponseWriter, r *http.Request, join bool) {
	var req MembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserId == nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.db.GetRoomByExternalId(r.PathValue("roomId"))
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetUserById(*req.UserId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if join {
		err = s.db.AddViewer(room.Id, user.Id)
	} else {
		err = s.db.RemoveViewer(room.Id, user.Id)
	}
	if err != nil {
		s.log.Println("change membership:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, nil)
}

func (s *WatchPartyApp) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if strings.TrimSpace(req.Username) == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newUser, err := s.db.CreateUser(database.CreateUserParams{Username: req.Username})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.User{
		Id:        newUser.Id,
		Username:  newUser.Username,
		CreatedAt: newUser.CreatedAt,
		UpdatedAt: newUser.UpdatedAt,
	})
}

func (s *WatchPartyApp) getUser(w http.ResponseWriter, r *http.Request) {
	userId, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetUserById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.User{
		Id:        user.Id,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
}

func (s *WatchPartyApp) uploadVideo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	defer file.Close()

	title := r.FormValue("title")
	if strings.TrimSpace(title) == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	url, err := s.uploader.Upload(r.Context(), file, sid)
	if err != nil {
		s.log.Println("upload video:", err)
		s.writeJson(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to upload video: " + err.Error(),
		})
		return
	}

	// duration is never probed at upload time, so it stays unset
	newVideo, err := s.db.CreateVideo(database.CreateVideoParams{
		ExternalId:   sid,
		Title:        title,
		Description:  r.FormValue("description"),
		Url:          url,
		ThumbnailUrl: media.ThumbnailURL(url),
	})
	if err != nil {
		s.log.Println("create video:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.stats.Incr("NumVideoUploads")
	s.writeJson(w, http.StatusCreated, *videoDTO(newVideo))
}

func (s *WatchPartyApp) listVideos(w http.ResponseWriter, r *http.Request) {
	dbVideos, err := s.db.ListVideos()
	if err != nil {
		s.log.Println("list videos:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	videos := make([]types.Video, 0, len(dbVideos))
	for _, dbVideo := range dbVideos {
		videos = append(videos, *videoDTO(dbVideo))
	}

	s.writeJson(w, http.StatusOK, videos)
}

func (s *WatchPartyApp) getVideo(w http.ResponseWriter, r *http.Request) {
	video, err := s.db.GetVideoByExternalId(r.PathValue("id"))
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, *videoDTO(video))
}

func (s *WatchPartyApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(conn, s.ss, s.log)

	s.ss.RegisterClient(client)
	go client.Write()
	go client.Read()
}

func (s *WatchPartyApp) generateShortId() (string, error) {
	return shortid.Generate()
}

// roomDTO projects a room row, resolving the weak reference to its
// current video at read time.
func (s *WatchPartyApp) roomDTO(room database.Room) types.Room {
	dto := types.Room{
		Id:        room.ExternalId,
		Name:      room.Name,
		Viewers:   room.ViewerCount,
		IsPrivate: room.IsPrivate,
	}

	if room.ScheduledTime.Valid {
		st := types.FormatScheduledTime(room.ScheduledTime.Time)
		dto.ScheduledTime = &st
	}

	if room.CurrentVideoId.Valid {
		if video, err := s.db.GetVideoById(int(room.CurrentVideoId.Int64)); err == nil {
			dto.CurrentVideo = videoDTO(video)
		}
	}

	return dto
}

func videoDTO(v database.Video) *types.Video {
	dto := &types.Video{
		Id:           v.ExternalId,
		Title:        v.Title,
		Description:  v.Description,
		Url:          v.Url,
		ThumbnailUrl: v.ThumbnailUrl,
		CreatedAt:    v.CreatedAt,
	}
	if v.Duration.Valid {
		d := int(v.Duration.Int64)
		dto.Duration = &d
	}
	return dto
}
