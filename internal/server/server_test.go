package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/cloudplay/go-watchparty/internal/database"
	"github.com/cloudplay/go-watchparty/internal/stats"
	"github.com/cloudplay/go-watchparty/internal/testutil"
)

// newTestSyncServer creates a new SyncServer instance for testing purposes
func newTestSyncServer(t *testing.T, db database.WatchPartyRepository, su *stats.MockStatsUpdater) *SyncServer {
	su.On("RegisterMetric", mock.Anything).Times(3)

	logger := testutil.TestLogger(t)
	ss, err := NewSyncServer(logger, db, su)
	if err != nil {
		t.Fatalf("failed to create test SyncServer: %v", err)
	}
	return ss
}

func TestNewSyncServer(t *testing.T) {
	db := &database.MockWatchPartyRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", mock.Anything).Times(3)

	logger := testutil.TestLogger(t)
	ss, err := NewSyncServer(logger, db, su)
	assert.NoError(t, err, "expected no error creating SyncServer")
	assert.NotNil(t, ss, "expected SyncServer to be non-nil")
	assert.Equal(t, logger, ss.log, "expected logger to be set")
	assert.Equal(t, db, ss.db, "expected database repository to be set")
	assert.NotNil(t, ss.clients, "expected clients map to be initialized")
	assert.NotNil(t, ss.topics, "expected topics map to be initialized")
	assert.NotNil(t, ss.subscribeChan, "expected subscribeChan to be initialized")
	assert.NotNil(t, ss.unsubscribeChan, "expected unsubscribeChan to be initialized")
	assert.NotNil(t, ss.syncChan, "expected syncChan to be initialized")
	assert.NotNil(t, ss.publishChan, "expected publishChan to be initialized")
	assert.NotNil(t, ss.stop, "expected stop channel to be initialized")
}

func Test_handleSubscribe(t *testing.T) {
	t.Run("subscribe adds client to topic and acks", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "NumSubscriptions").Once()

		ss := newTestSyncServer(t, &database.MockWatchPartyRepository{}, su)

		client := &Client{sessionId: "s1", send: make(chan *ServerMessage, 1)}
		ss.handleSubscribe(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			Subscribe:   &Subscribe{RoomId: "room1"},
			client:      client,
		})

		assert.Contains(t, ss.topics, "room1", "expected topic to be created")
		assert.Contains(t, ss.topics["room1"], client, "expected client to be subscribed")

		select {
		case msg := <-client.send:
			assert.NotNil(t, msg.Response, "expected a response ack")
			assert.Equal(t, 200, msg.Response.ResponseCode, "expected OK ack")
		default:
			t.Error("expected ack to be queued to client")
		}
	})

	t.Run("duplicate subscribe does not double count", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "NumSubscriptions").Once()

		ss := newTestSyncServer(t, &database.MockWatchPartyRepository{}, su)

		client := &Client{sessionId: "s1", send: make(chan *ServerMessage, 2)}
		msg := &ClientMessage{Subscribe: &Subscribe{RoomId: "room1"}, client: client}
		ss.handleSubscribe(msg)
		ss.handleSubscribe(msg)

		assert.Len(t, ss.topics["room1"], 1, "expected a single subscription")
	})
}

func Test_handleUnsubscribe(t *testing.T) {
	t.Run("unsubscribe removes client and drops empty topic", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "NumSubscriptions").Once()
		su.On("Decr", "NumSubscriptions").Once()

		ss := newTestSyncServer(t, &database.MockWatchPartyRepository{}, su)

		client := &Client{sessionId: "s1", send: make(chan *ServerMessage, 2)}
		ss.handleSubscribe(&ClientMessage{Subscribe: &Subscribe{RoomId: "room1"}, client: client})
		ss.handleUnsubscribe(&ClientMessage{Unsubscribe: &Unsubscribe{RoomId: "room1"}, client: client})

		assert.NotContains(t, ss.topics, "room1", "expected empty topic to be removed")
	})

	t.Run("unsubscribe from unknown topic still acks", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)

		ss := newTestSyncServer(t, &database.MockWatchPartyRepository{}, su)

		client := &Client{sessionId: "s1", send: make(chan *ServerMessage, 1)}
		ss.handleUnsubscribe(&ClientMessage{Unsubscribe: &Unsubscribe{RoomId: "nope"}, client: client})

		select {
		case msg := <-client.send:
			assert.Equal(t, 200, msg.Response.ResponseCode, "expected OK ack")
		default:
			t.Error("expected ack to be queued to client")
		}
	})
}

func Test_handleSync(t *testing.T) {
	scheduled := time.Date(2030, 1, 1, 20, 0, 0, 0, time.UTC)

	t.Run("sync broadcasts snapshot with resolved video", func(t *testing.T) {
		db := &database.MockWatchPartyRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "NumSyncRequests").Once()

		ss := newTestSyncServer(t, db, su)

		db.On("GetRoomByExternalId", "room1").Return(database.Room{
			Id:             1,
			ExternalId:     "room1",
			Name:           "movie night",
			ScheduledTime:  sql.NullTime{Time: scheduled, Valid: true},
			CurrentVideoId: sql.NullInt64{Int64: 7, Valid: true},
		}, nil).Once()
		db.On("GetVideoById", 7).Return(database.Video{
			Id:         7,
			ExternalId: "vid7",
			Title:      "trailer",
			Url:        "https://res.cloudinary.com/demo/video/upload/vid7.mp4",
		}, nil).Once()

		subscriber := &Client{sessionId: "s1", send: make(chan *ServerMessage, 1)}
		requester := &Client{sessionId: "s2", send: make(chan *ServerMessage, 1)}
		ss.topics["room1"] = map[*Client]struct{}{subscriber: {}, requester: {}}

		ss.handleSync(&ClientMessage{Sync: &Sync{RoomId: "room1"}, client: requester})

		for _, c := range []*Client{subscriber, requester} {
			select {
			case msg := <-c.send:
				assert.NotNil(t, msg.Schedule, "expected schedule payload")
				assert.Equal(t, TypeSync, msg.Schedule.Type, "expected SYNC message")
				assert.Equal(t, "room1", msg.Schedule.RoomId, "expected room id to match")
				assert.NotNil(t, msg.Schedule.Video, "expected video snapshot")
				assert.Equal(t, "vid7", msg.Schedule.Video.Id, "expected video id to match")
				assert.NotNil(t, msg.Schedule.ScheduledTime, "expected scheduled time")
				assert.Equal(t, "2030-01-01T20:00:00", *msg.Schedule.ScheduledTime, "expected scheduled time to be rendered")
			default:
				t.Errorf("expected message for client %q", c.sessionId)
			}
		}
	})

	t.Run("sync without current video omits snapshot", func(t *testing.T) {
		db := &database.MockWatchPartyRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "NumSyncRequests").Once()

		ss := newTestSyncServer(t, db, su)

		db.On("GetRoomByExternalId", "room1").Return(database.Room{
			Id:         1,
			ExternalId: "room1",
			Name:       "movie night",
		}, nil).Once()

		subscriber := &Client{sessionId: "s1", send: make(chan *ServerMessage, 1)}
		ss.topics["room1"] = map[*Client]struct{}{subscriber: {}}

		ss.handleSync(&ClientMessage{Sync: &Sync{RoomId: "room1"}, client: subscriber})

		select {
		case msg := <-subscriber.send:
			assert.Equal(t, TypeSync, msg.Schedule.Type, "expected SYNC message")
			assert.Nil(t, msg.Schedule.Video, "expected no video snapshot")
			assert.Nil(t, msg.Schedule.ScheduledTime, "expected no scheduled time")
		default:
			t.Error("expected message to be queued to subscriber")
		}
	})

	t.Run("sync on unknown room broadcasts ERROR", func(t *testing.T) {
		db := &database.MockWatchPartyRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "NumSyncRequests").Once()

		ss := newTestSyncServer(t, db, su)

		db.On("GetRoomByExternalId", "missing").Return(database.Room{}, sql.ErrNoRows).Once()

		subscriber := &Client{sessionId: "s1", send: make(chan *ServerMessage, 1)}
		ss.topics["missing"] = map[*Client]struct{}{subscriber: {}}

		ss.handleSync(&ClientMessage{Sync: &Sync{RoomId: "missing"}, client: subscriber})

		select {
		case msg := <-subscriber.send:
			assert.Equal(t, TypeError, msg.Schedule.Type, "expected ERROR message")
			assert.Equal(t, "missing", msg.Schedule.RoomId, "expected room id to match")
			assert.Nil(t, msg.Schedule.Video, "expected no video payload")
			assert.Nil(t, msg.Schedule.ScheduledTime, "expected no scheduled time payload")
		default:
			t.Error("expected error message to be queued to subscriber")
		}
	})

	t.Run("sync with db error broadcasts ERROR", func(t *testing.T) {
		db := &database.MockWatchPartyRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		su.On("Incr", "NumSyncRequests").Once()

		ss := newTestSyncServer(t, db, su)

		db.On("GetRoomByExternalId", "room1").Return(database.Room{}, errors.New("db error")).Once()

		subscriber := &Client{sessionId: "s1", send: make(chan *ServerMessage, 1)}
		ss.topics["room1"] = map[*Client]struct{}{subscriber: {}}

		ss.handleSync(&ClientMessage{Sync: &Sync{RoomId: "room1"}, client: subscriber})

		select {
		case msg := <-subscriber.send:
			assert.Equal(t, TypeError, msg.Schedule.Type, "expected ERROR message")
		default:
			t.Error("expected error message to be queued to subscriber")
		}
	})
}

func Test_broadcast(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)

	ss := newTestSyncServer(t, &database.MockWatchPartyRepository{}, su)

	client1 := &Client{sessionId: "s1", send: make(chan *ServerMessage, 1)}
	client2 := &Client{sessionId: "s2", send: make(chan *ServerMessage, 1)}
	other := &Client{sessionId: "s3", send: make(chan *ServerMessage, 1)}
	ss.topics["room1"] = map[*Client]struct{}{client1: {}, client2: {}}
	ss.topics["room2"] = map[*Client]struct{}{other: {}}

	ss.broadcast("room1", NewStartMessage("room1"))

	assert.Len(t, client1.send, 1, "expected message queued to client1")
	assert.Len(t, client2.send, 1, "expected message queued to client2")
	assert.Len(t, other.send, 0, "expected no message queued to other topic's subscriber")
}

func TestSyncServer_addClient_removeClient(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Decr", "NumSubscriptions").Once()

	ss := newTestSyncServer(t, &database.MockWatchPartyRepository{}, su)

	client := &Client{sessionId: "s1", send: make(chan *ServerMessage, 1)}
	ss.addClient(client)
	assert.Contains(t, ss.clients, client, "expected client to be added")

	ss.topics["room1"] = map[*Client]struct{}{client: {}}

	ss.removeClient(client)
	assert.NotContains(t, ss.clients, client, "expected client to be removed")
	assert.NotContains(t, ss.topics, "room1", "expected client's subscriptions to be swept")
}

func TestSyncServerShutdown(t *testing.T) {
	t.Run("successful shutdown", func(t *testing.T) {
		ss := newTestSyncServer(t, &database.MockWatchPartyRepository{}, &stats.MockStatsUpdater{})

		go ss.Run()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := ss.Shutdown(ctx)
		assert.NoError(t, err, "expected no error on shutdown")
	})

	t.Run("shutdown times out when server is not running", func(t *testing.T) {
		ss := newTestSyncServer(t, &database.MockWatchPartyRepository{}, &stats.MockStatsUpdater{})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := ss.Shutdown(ctx)
		assert.Error(t, err, "expected error when run loop never acknowledges")
	})
}

func TestPublishAfterShutdown(t *testing.T) {
	ss := newTestSyncServer(t, &database.MockWatchPartyRepository{}, &stats.MockStatsUpdater{})

	go ss.Run()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, ss.Shutdown(ctx), "expected no error on shutdown")

	done := make(chan struct{})
	go func() {
		// must not block once the run loop has exited
		ss.Publish("room1", NewStartMessage("room1"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked after shutdown")
	}
}
