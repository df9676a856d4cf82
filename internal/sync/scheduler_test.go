package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/model"
	syncengine "tasksync/internal/sync"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestScheduler_StartStop(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	sched := syncengine.NewScheduler(engine)

	assert.False(t, sched.Running())
	_, ok := sched.NextRunAt()
	assert.False(t, ok)

	sched.Start(time.Hour)
	defer sched.Stop()
	assert.True(t, sched.Running())

	next, ok := sched.NextRunAt()
	require.True(t, ok)
	assert.True(t, next.After(time.Now()))

	sched.Stop()
	assert.False(t, sched.Running())
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	sched := syncengine.NewScheduler(engine)

	sched.Start(time.Hour)
	defer sched.Stop()
	first, _ := sched.NextRunAt()

	// A second Start must not restart the timer.
	sched.Start(time.Minute)
	second, _ := sched.NextRunAt()
	assert.Equal(t, first, second)
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	sched := syncengine.NewScheduler(engine)

	sched.Stop()
	sched.Start(time.Hour)
	sched.Stop()
	sched.Stop()
	assert.False(t, sched.Running())
}

func TestScheduler_FiresCycles(t *testing.T) {
	engine, tasks, _, store := newTestEngine(t)
	tasks.AddItem("", model.Item{ExternalID: "t1", Title: "Buy milk"})

	sched := syncengine.NewScheduler(engine)
	sched.Start(10 * time.Millisecond)
	defer sched.Stop()

	waitFor(t, 2*time.Second, func() bool {
		return len(store.Results()) >= 1
	})
	assert.Equal(t, model.StatusSuccess, store.Results()[0].Status)
}

func TestScheduler_StopPreventsFutureFires(t *testing.T) {
	engine, _, _, store := newTestEngine(t)
	sched := syncengine.NewScheduler(engine)

	sched.Start(20 * time.Millisecond)
	waitFor(t, 2*time.Second, func() bool {
		return len(store.Results()) >= 1
	})
	sched.Stop()

	count := len(store.Results())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, count, len(store.Results()))
}

func TestScheduler_DropsFireWhileCycleInFlight(t *testing.T) {
	engine, tasks, _, store := newTestEngine(t)
	tasks.FetchStarted = make(chan struct{}, 1)
	tasks.FetchGate = make(chan struct{})

	// Hold a manual cycle in flight.
	manualDone := make(chan struct{})
	go func() {
		_, _ = engine.RunCycle(context.Background())
		close(manualDone)
	}()
	<-tasks.FetchStarted

	sched := syncengine.NewScheduler(engine)
	sched.Start(10 * time.Millisecond)
	defer sched.Stop()

	// Scheduled fires lose the single-flight race and are dropped, so
	// no result appears while the manual cycle holds the guard.
	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, store.Results())

	close(tasks.FetchGate)
	<-manualDone
}

func TestScheduler_StopDoesNotCancelInFlightCycle(t *testing.T) {
	engine, tasks, _, store := newTestEngine(t)
	tasks.AddItem("", model.Item{ExternalID: "t1", Title: "Buy milk"})
	tasks.FetchStarted = make(chan struct{}, 1)
	tasks.FetchGate = make(chan struct{})

	sched := syncengine.NewScheduler(engine)
	sched.Start(10 * time.Millisecond)

	// Stop while the scheduled cycle is inside its provider fetch. Stop
	// only prevents future fires; the running cycle must finish cleanly.
	<-tasks.FetchStarted
	sched.Stop()
	close(tasks.FetchGate)

	waitFor(t, 2*time.Second, func() bool {
		return len(store.Results()) >= 1
	})
	res := store.Results()[0]
	assert.Equal(t, model.StatusSuccess, res.Status)
	assert.Equal(t, 1, res.RemindersSynced)
}

func TestScheduler_IntervalChangeTakesEffectNextFire(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	sched := syncengine.NewScheduler(engine)

	sched.Start(time.Hour)
	defer sched.Stop()

	pending, _ := sched.NextRunAt()
	sched.SetInterval(time.Minute)

	// The pending timer is not rebased.
	next, ok := sched.NextRunAt()
	require.True(t, ok)
	assert.Equal(t, pending, next)
}
