package server

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"

	"github.com/cloudplay/go-watchparty/internal/database"
	"github.com/cloudplay/go-watchparty/internal/stats"
	"github.com/cloudplay/go-watchparty/internal/types"
)

// SyncServer owns the websocket clients and the per-room topics they
// subscribe to. All topic state is confined to the Run loop.
type SyncServer struct {
	log             *log.Logger
	db              database.WatchPartyRepository
	stats           stats.StatsProvider
	clients         map[*Client]struct{}
	clientsLock     sync.Mutex
	topics          map[string]map[*Client]struct{}
	RegisterChan    chan *Client
	deRegisterChan  chan *Client
	subscribeChan   chan *ClientMessage
	unsubscribeChan chan *ClientMessage
	syncChan        chan *ClientMessage
	publishChan     chan *publishReq
	stop            chan struct{}
	done            chan struct{}
}

type publishReq struct {
	roomId string
	msg    *ScheduleMessage
}

func NewSyncServer(logger *log.Logger, db database.WatchPartyRepository, su stats.StatsProvider) (*SyncServer, error) {
	ss := &SyncServer{
		log:             logger,
		db:              db,
		stats:           su,
		clients:         make(map[*Client]struct{}),
		topics:          make(map[string]map[*Client]struct{}),
		RegisterChan:    make(chan *Client),
		deRegisterChan:  make(chan *Client),
		subscribeChan:   make(chan *ClientMessage, 256),
		unsubscribeChan: make(chan *ClientMessage, 256),
		syncChan:        make(chan *ClientMessage, 256),
		publishChan:     make(chan *publishReq, 256),
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}

	for _, metric := range []string{
		"NumActiveClients",
		"NumSubscriptions",
		"NumSyncRequests",
	} {
		su.RegisterMetric(metric)
	}

	return ss, nil
}

func (ss *SyncServer) Run() {
	for {
		select {
		case client := <-ss.RegisterChan:
			ss.log.Printf("adding connection %q", client.sessionId)
			ss.addClient(client)
			ss.stats.Incr("NumActiveClients")
		case client := <-ss.deRegisterChan:
			ss.log.Printf("removing connection %q", client.sessionId)
			ss.removeClient(client)
			ss.stats.Decr("NumActiveClients")
		case msg := <-ss.subscribeChan:
			ss.handleSubscribe(msg)
		case msg := <-ss.unsubscribeChan:
			ss.handleUnsubscribe(msg)
		case msg := <-ss.syncChan:
			ss.handleSync(msg)
		case req := <-ss.publishChan:
			ss.broadcast(req.roomId, req.msg)
		case <-ss.stop:
			ss.log.Println("shutting down sync server")
			close(ss.done)
			return
		}
	}
}

func (ss *SyncServer) RegisterClient(c *Client) {
	ss.RegisterChan <- c
}

// Publish queues a schedule message for broadcast to the room's topic.
// Delivery is fire-and-forget.
func (ss *SyncServer) Publish(roomId string, msg *ScheduleMessage) {
	select {
	case ss.publishChan <- &publishReq{roomId: roomId, msg: msg}:
	case <-ss.stop:
	}
}

func (ss *SyncServer) handleSubscribe(msg *ClientMessage) {
	roomId := msg.Subscribe.RoomId
	if ss.topics[roomId] == nil {
		ss.topics[roomId] = make(map[*Client]struct{})
	}

	if _, ok := ss.topics[roomId][msg.client]; !ok {
		ss.topics[roomId][msg.client] = struct{}{}
		ss.stats.Incr("NumSubscriptions")
	}

	msg.client.queueMessage(NoErrOK(msg.Id))
}

func (ss *SyncServer) handleUnsubscribe(msg *ClientMessage) {
	roomId := msg.Unsubscribe.RoomId
	if subs, ok := ss.topics[roomId]; ok {
		if _, ok := subs[msg.client]; ok {
			delete(subs, msg.client)
			ss.stats.Decr("NumSubscriptions")
		}
		if len(subs) == 0 {
			delete(ss.topics, roomId)
		}
	}

	msg.client.queueMessage(NoErrOK(msg.Id))
}

// handleSync answers a sync request with a broadcast to the room's topic,
// so every subscriber observes the same snapshot.
func (ss *SyncServer) handleSync(msg *ClientMessage) {
	ss.stats.Incr("NumSyncRequests")

	roomId := msg.Sync.RoomId
	room, err := ss.db.GetRoomByExternalId(roomId)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			ss.log.Println("GetRoomByExternalId:", err)
		}
		ss.broadcast(roomId, NewErrorMessage(roomId))
		return
	}

	var video *types.Video
	if room.CurrentVideoId.Valid {
		dbVideo, err := ss.db.GetVideoById(int(room.CurrentVideoId.Int64))
		if err == nil {
			video = videoDTO(dbVideo)
		}
	}

	var scheduledTime *string
	if room.ScheduledTime.Valid {
		st := types.FormatScheduledTime(room.ScheduledTime.Time)
		scheduledTime = &st
	}

	ss.broadcast(roomId, NewSyncMessage(roomId, video, scheduledTime))
}

func (ss *SyncServer) broadcast(roomId string, msg *ScheduleMessage) {
	subs := ss.topics[roomId]
	ss.log.Printf("broadcast %s message to %d subscribers of room %q", msg.Type, len(subs), roomId)
	for client := range subs {
		client.queueMessage(&ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			Schedule:    msg,
		})
	}
}

func (ss *SyncServer) addClient(c *Client) {
	ss.clientsLock.Lock()
	defer ss.clientsLock.Unlock()
	ss.clients[c] = struct{}{}
}

func (ss *SyncServer) removeClient(c *Client) {
	ss.clientsLock.Lock()
	defer ss.clientsLock.Unlock()
	delete(ss.clients, c)

	// drop the connection from every topic it subscribed to
	for roomId, subs := range ss.topics {
		if _, ok := subs[c]; ok {
			delete(subs, c)
			ss.stats.Decr("NumSubscriptions")
		}
		if len(subs) == 0 {
			delete(ss.topics, roomId)
		}
	}
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

func (ss *SyncServer) Shutdown(ctx context.Context) error {
	ss.log.Println("received shutdown signal")
	ss.clientsLock.Lock()
	for c := range ss.clients {
		c.stopClient()
	}
	ss.clientsLock.Unlock()

	close(ss.stop)

	select {
	case <-ss.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
