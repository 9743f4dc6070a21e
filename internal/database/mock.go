package database

import (
	"github.com/stretchr/testify/mock"
)

type MockWatchPartyRepository struct {
	mock.Mock
}

func (m *MockWatchPartyRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockWatchPartyRepository) CreateUser(params CreateUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockWatchPartyRepository) GetUserById(userId int) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockWatchPartyRepository) ListRooms() ([]Room, error) {
	args := m.Called()
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockWatchPartyRepository) GetRoomByExternalId(externalId string) (Room, error) {
	args := m.Called(externalId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockWatchPartyRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockWatchPartyRepository) AddViewer(roomId, userId int) error {
	args := m.Called(roomId, userId)
	return args.Error(0)
}
func (m *MockWatchPartyRepository) RemoveViewer(roomId, userId int) error {
	args := m.Called(roomId, userId)
	return args.Error(0)
}
func (m *MockWatchPartyRepository) CreateVideo(params CreateVideoParams) (Video, error) {
	args := m.Called(params)
	return args.Get(0).(Video), args.Error(1)
}
func (m *MockWatchPartyRepository) GetVideoById(videoId int) (Video, error) {
	args := m.Called(videoId)
	return args.Get(0).(Video), args.Error(1)
}
func (m *MockWatchPartyRepository) GetVideoByExternalId(externalId string) (Video, error) {
	args := m.Called(externalId)
	return args.Get(0).(Video), args.Error(1)
}
func (m *MockWatchPartyRepository) ListVideos() ([]Video, error) {
	args := m.Called()
	return args.Get(0).([]Video), args.Error(1)
}
