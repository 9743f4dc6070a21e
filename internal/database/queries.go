package database

import (
	"time"
)

const roomColumns = "r.id, r.external_id, r.name, r.is_private, r.scheduled_time, r.current_video_id, r.created_at, r.updated_at, " +
	"(SELECT COUNT(*) FROM room_viewers v WHERE v.room_id = r.id) AS viewer_count"

func (db *DBConn) CreateUser(params CreateUserParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO users (username, created_at, updated_at) "+
			"VALUES ($1, $2, $2) RETURNING id, username, created_at, updated_at",
		params.Username,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *DBConn) GetUserById(userId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, created_at, updated_at FROM users "+
			"WHERE id = $1 LIMIT 1",
		userId,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *DBConn) ListRooms() ([]Room, error) {
	rows, err := db.conn.Query("SELECT " + roomColumns + " FROM rooms r")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms = make([]Room, 0)
	for rows.Next() {
		var room Room
		if err = rows.Scan(
			&room.Id,
			&room.ExternalId,
			&room.Name,
			&room.IsPrivate,
			&room.ScheduledTime,
			&room.CurrentVideoId,
			&room.CreatedAt,
			&room.UpdatedAt,
			&room.ViewerCount,
		); err != nil {
			break
		}

		rooms = append(rooms, room)
	}

	return rooms, err
}

func (db *DBConn) GetRoomByExternalId(externalId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT "+roomColumns+" FROM rooms r WHERE r.external_id = $1 LIMIT 1",
		externalId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.IsPrivate,
		&room.ScheduledTime,
		&room.CurrentVideoId,
		&room.CreatedAt,
		&room.UpdatedAt,
		&room.ViewerCount,
	)

	return room, err
}

func (db *DBConn) CreateRoom(params CreateRoomParams) (Room, error) {
	res := db.conn.QueryRow(
		"INSERT INTO rooms (external_id, name, is_private, scheduled_time, current_video_id, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $6) "+
			"RETURNING id, external_id, name, is_private, scheduled_time, current_video_id, created_at, updated_at",
		params.ExternalId,
		params.Name,
		params.IsPrivate,
		params.ScheduledTime,
		params.CurrentVideoId,
		time.Now().UTC(),
	)

	var room Room
	err := res.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.IsPrivate,
		&room.ScheduledTime,
		&room.CurrentVideoId,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

// AddViewer inserts a membership row. Joining a room the user is already
// in is a no-op.
func (db *DBConn) AddViewer(roomId, userId int) error {
	_, err := db.conn.Exec(
		"INSERT INTO room_viewers (room_id, user_id, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (room_id, user_id) DO NOTHING",
		roomId,
		userId,
		time.Now().UTC(),
	)

	return err
}

// RemoveViewer deletes a membership row. Leaving a room the user never
// joined is a no-op.
func (db *DBConn) RemoveViewer(roomId, userId int) error {
	_, err := db.conn.Exec(
		"DELETE FROM room_viewers WHERE room_id = $1 AND user_id = $2",
		roomId,
		userId,
	)

	return err
}

func (db *DBConn) CreateVideo(params CreateVideoParams) (Video, error) {
	res := db.conn.QueryRow(
		"INSERT INTO videos (external_id, title, description, url, thumbnail_url, duration, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) "+
			"RETURNING id, external_id, title, description, url, thumbnail_url, duration, created_at",
		params.ExternalId,
		params.Title,
		params.Description,
		params.Url,
		params.ThumbnailUrl,
		params.Duration,
		time.Now().UTC(),
	)

	var video Video
	err := res.Scan(
		&video.Id,
		&video.ExternalId,
		&video.Title,
		&video.Description,
		&video.Url,
		&video.ThumbnailUrl,
		&video.Duration,
		&video.CreatedAt,
	)

	return video, err
}

func (db *DBConn) GetVideoById(videoId int) (Video, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, title, description, url, thumbnail_url, duration, created_at FROM videos "+
			"WHERE id = $1 LIMIT 1",
		videoId,
	)

	var video Video
	err := row.Scan(
		&video.Id,
		&video.ExternalId,
		&video.Title,
		&video.Description,
		&video.Url,
		&video.ThumbnailUrl,
		&video.Duration,
		&video.CreatedAt,
	)

	return video, err
}

func (db *DBConn) GetVideoByExternalId(externalId string) (Video, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, title, description, url, thumbnail_url, duration, created_at FROM videos "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var video Video
	err := row.Scan(
		&video.Id,
		&video.ExternalId,
		&video.Title,
		&video.Description,
		&video.Url,
		&video.ThumbnailUrl,
		&video.Duration,
		&video.CreatedAt,
	)

	return video, err
}

func (db *DBConn) ListVideos() ([]Video, error) {
	rows, err := db.conn.Query(
		"SELECT id, external_id, title, description, url, thumbnail_url, duration, created_at FROM videos",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos = make([]Video, 0)
	for rows.Next() {
		var video Video
		if err = rows.Scan(
			&video.Id,
			&video.ExternalId,
			&video.Title,
			&video.Description,
			&video.Url,
			&video.ThumbnailUrl,
			&video.Duration,
			&video.CreatedAt,
		); err != nil {
			break
		}

		videos = append(videos, video)
	}

	return videos, err
}
