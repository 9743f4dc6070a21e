package database

type WatchPartyRepository interface {
	Ping() error
	CreateUser(params CreateUserParams) (User, error)
	GetUserById(userId int) (User, error)
	ListRooms() ([]Room, error)
	GetRoomByExternalId(externalId string) (Room, error)
	CreateRoom(params CreateRoomParams) (Room, error)
	AddViewer(roomId, userId int) error
	RemoveViewer(roomId, userId int) error
	CreateVideo(params CreateVideoParams) (Video, error)
	GetVideoById(videoId int) (Video, error)
	GetVideoByExternalId(externalId string) (Video, error)
	ListVideos() ([]Video, error)
}
