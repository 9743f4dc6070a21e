package server

import (
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

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(roomId string, msg *ScheduleMessage) {
	m.Called(roomId, msg)
}

func newTestScheduler(t *testing.T, db database.WatchPartyRepository, pub Publisher, su *stats.MockStatsUpdater) *Scheduler {
	su.On("RegisterMetric", "NumStartBroadcasts").Once()

	logger := testutil.TestLogger(t)
	return NewScheduler(logger, db, pub, su, time.Minute)
}

func scheduledRoom(externalId string, scheduled time.Time) database.Room {
	return database.Room{
		Id:            1,
		ExternalId:    externalId,
		Name:          "test room",
		ScheduledTime: sql.NullTime{Time: scheduled, Valid: true},
	}
}

func Test_scan(t *testing.T) {
	scheduled := time.Date(2030, 1, 1, 20, 0, 0, 0, time.UTC)

	t.Run("room inside the start window is announced once", func(t *testing.T) {
		db := &database.MockWatchPartyRepository{}
		defer db.AssertExpectations(t)
		pub := &mockPublisher{}
		defer pub.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)

		sched := newTestScheduler(t, db, pub, su)

		db.On("ListRooms").Return([]database.Room{scheduledRoom("room1", scheduled)}, nil).Once()
		pub.On("Publish", "room1", NewStartMessage("room1")).Once()
		su.On("Incr", "NumStartBroadcasts").Once()

		sched.scan(scheduled.Add(30 * time.Second))
	})

	t.Run("room past the window is not announced", func(t *testing.T) {
		db := &database.MockWatchPartyRepository{}
		defer db.AssertExpectations(t)
		pub := &mockPublisher{}
		defer pub.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)

		sched := newTestScheduler(t, db, pub, su)

		db.On("ListRooms").Return([]database.Room{scheduledRoom("room1", scheduled)}, nil).Once()

		sched.scan(scheduled.Add(90 * time.Second))
	})

	t.Run("room before its scheduled time is not announced", func(t *testing.T) {
		db := &database.MockWatchPartyRepository{}
		defer db.AssertExpectations(t)
		pub := &mockPublisher{}
		defer pub.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)

		sched := newTestScheduler(t, db, pub, su)

		db.On("ListRooms").Return([]database.Room{scheduledRoom("room1", scheduled)}, nil).Once()

		sched.scan(scheduled.Add(-time.Second))
	})

	t.Run("announcement at the exact scheduled time", func(t *testing.T) {
		db := &database.MockWatchPartyRepository{}
		defer db.AssertExpectations(t)
		pub := &mockPublisher{}
		defer pub.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)

		sched := newTestScheduler(t, db, pub, su)

		db.On("ListRooms").Return([]database.Room{scheduledRoom("room1", scheduled)}, nil).Once()
		pub.On("Publish", "room1", NewStartMessage("room1")).Once()
		su.On("Incr", "NumStartBroadcasts").Once()

		sched.scan(scheduled)
	})

	t.Run("consecutive ticks in the same window announce only once", func(t *testing.T) {
		db := &database.MockWatchPartyRepository{}
		defer db.AssertExpectations(t)
		pub := &mockPublisher{}
		defer pub.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)

		sched := newTestScheduler(t, db, pub, su)

		db.On("ListRooms").Return([]database.Room{scheduledRoom("room1", scheduled)}, nil).Twice()
		pub.On("Publish", "room1", NewStartMessage("room1")).Once()
		su.On("Incr", "NumStartBroadcasts").Once()

		sched.scan(scheduled.Add(10 * time.Second))
		sched.scan(scheduled.Add(50 * time.Second))
	})

	t.Run("rescheduled room is announced again", func(t *testing.T) {
		db := &database.MockWatchPartyRepository{}
		defer db.AssertExpectations(t)
		pub := &mockPublisher{}
		defer pub.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)

		sched := newTestScheduler(t, db, pub, su)

		rescheduled := scheduled.Add(time.Hour)
		db.On("ListRooms").Return([]database.Room{scheduledRoom("room1", scheduled)}, nil).Once()
		db.On("ListRooms").Return([]database.Room{scheduledRoom("room1", rescheduled)}, nil).Once()
		pub.On("Publish", "room1", NewStartMessage("room1")).Twice()
		su.On("Incr", "NumStartBroadcasts").Twice()

		sched.scan(scheduled.Add(10 * time.Second))
		sched.scan(rescheduled.Add(10 * time.Second))
	})

	t.Run("room without a schedule is skipped", func(t *testing.T) {
		db := &database.MockWatchPartyRepository{}
		defer db.AssertExpectations(t)
		pub := &mockPublisher{}
		defer pub.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)

		sched := newTestScheduler(t, db, pub, su)

		db.On("ListRooms").Return([]database.Room{{Id: 1, ExternalId: "room1", Name: "test room"}}, nil).Once()

		sched.scan(scheduled)
	})

	t.Run("list error skips the tick", func(t *testing.T) {
		db := &database.MockWatchPartyRepository{}
		defer db.AssertExpectations(t)
		pub := &mockPublisher{}
		defer pub.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)

		sched := newTestScheduler(t, db, pub, su)

		db.On("ListRooms").Return([]database.Room{}, errors.New("db error")).Once()

		sched.scan(scheduled)
	})
}

func TestSchedulerRunStop(t *testing.T) {
	db := &database.MockWatchPartyRepository{}
	defer db.AssertExpectations(t)
	pub := &mockPublisher{}
	defer pub.AssertExpectations(t)
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)

	sched := newTestScheduler(t, db, pub, su)

	sched.Run()

	stopped := make(chan struct{})
	go func() {
		sched.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop in time")
	}

	assert.Empty(t, sched.notified, "expected no rooms to have been announced")
}
