package server

import (
	"log"
	"time"

	"github.com/cloudplay/go-watchparty/internal/database"
	"github.com/cloudplay/go-watchparty/internal/stats"
)

type Publisher interface {
	Publish(roomId string, msg *ScheduleMessage)
}

// Scheduler periodically scans the room list and announces rooms whose
// scheduled start time has just elapsed. Ticks are stateless with respect
// to the store: each scan reads the full room list once, and a failed
// scan is simply retried by the next tick.
type Scheduler struct {
	log      *log.Logger
	db       database.WatchPartyRepository
	pub      Publisher
	stats    stats.StatsProvider
	interval time.Duration
	// notified maps a room id to the scheduled time already announced,
	// so a room matched by two consecutive ticks starts only once.
	notified map[string]time.Time
	stop     chan struct{}
	done     chan struct{}
}

func NewScheduler(logger *log.Logger, db database.WatchPartyRepository, pub Publisher, su stats.StatsProvider, interval time.Duration) *Scheduler {
	su.RegisterMetric("NumStartBroadcasts")

	return &Scheduler{
		log:      logger,
		db:       db,
		pub:      pub,
		stats:    su,
		interval: interval,
		notified: make(map[string]time.Time),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Scheduler) Run() {
	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.scan(time.Now())
		case <-s.stop:
			close(s.done)
			return
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// scan announces every room whose scheduled time T satisfies
// now in [T, T+interval) and that has not been announced for that T yet.
func (s *Scheduler) scan(now time.Time) {
	rooms, err := s.db.ListRooms()
	if err != nil {
		s.log.Println("list rooms:", err)
		return
	}

	var roomsToStart []string
	for _, room := range rooms {
		if !room.ScheduledTime.Valid {
			continue
		}

		scheduled := room.ScheduledTime.Time
		if now.Before(scheduled) || !now.Before(scheduled.Add(s.interval)) {
			// outside the start window; forget the marker so a
			// rescheduled room can fire again
			delete(s.notified, room.ExternalId)
			continue
		}

		if prev, ok := s.notified[room.ExternalId]; ok && prev.Equal(scheduled) {
			continue
		}

		s.notified[room.ExternalId] = scheduled
		roomsToStart = append(roomsToStart, room.ExternalId)
	}

	for _, roomId := range roomsToStart {
		s.log.Printf("scheduled start for room %q", roomId)
		s.pub.Publish(roomId, NewStartMessage(roomId))
		s.stats.Incr("NumStartBroadcasts")
	}
}
