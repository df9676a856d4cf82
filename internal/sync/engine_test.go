package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/model"
	"tasksync/internal/provider"
	syncengine "tasksync/internal/sync"
	"tasksync/internal/testutil"
)

func newTestEngine(t *testing.T) (*syncengine.Engine, *testutil.FakeProvider, *testutil.FakeProvider, *testutil.MemStore) {
	t.Helper()
	tasks := testutil.NewFakeProvider(model.SourceTasks)
	reminders := testutil.NewFakeProvider(model.SourceReminders)
	store := testutil.NewMemStore()
	return syncengine.NewEngine(tasks, reminders, store), tasks, reminders, store
}

func TestRunCycle_CreatesMissingReminder(t *testing.T) {
	engine, tasks, reminders, store := newTestEngine(t)
	tasks.AddItem("", model.Item{ExternalID: "t1", Title: "Buy milk"})

	res, err := engine.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, res.Status)
	assert.Equal(t, 0, res.TasksSynced)
	assert.Equal(t, 1, res.RemindersSynced)

	created := reminders.Items("")
	require.Len(t, created, 1)
	assert.Equal(t, "Buy milk", created[0].Title)
	assert.Equal(t, "t1", created[0].LinkID)

	// The result is persisted.
	require.Len(t, store.Results(), 1)
	assert.Equal(t, model.StatusSuccess, store.Results()[0].Status)
}

func TestRunCycle_SecondCycleIsNoop(t *testing.T) {
	engine, tasks, _, _ := newTestEngine(t)
	tasks.AddItem("", model.Item{ExternalID: "t1", Title: "Buy milk"})

	first, err := engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.RemindersSynced)

	// Nothing changed externally; the created reminder carries the link
	// back to the task, so the next cycle pairs them and does nothing.
	second, err := engine.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, second.Status)
	assert.Zero(t, second.TasksSynced)
	assert.Zero(t, second.RemindersSynced)
}

func TestRunCycle_CompletionCountsTowardTasks(t *testing.T) {
	engine, tasks, reminders, _ := newTestEngine(t)
	tasks.AddItem("", model.Item{ExternalID: "t1", Title: "Pay rent"})
	done := model.Item{ExternalID: "r1", Title: "Pay rent", Completed: true}
	reminders.AddItem("", done)

	res, err := engine.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, res.Status)
	assert.Equal(t, 1, res.TasksSynced)

	got := tasks.Items("")
	require.Len(t, got, 1)
	assert.True(t, got[0].Completed)
}

func TestRunCycle_SingleFlight(t *testing.T) {
	engine, tasks, _, _ := newTestEngine(t)
	tasks.FetchStarted = make(chan struct{}, 1)
	tasks.FetchGate = make(chan struct{})

	firstDone := make(chan model.Result, 1)
	go func() {
		res, _ := engine.RunCycle(context.Background())
		firstDone <- res
	}()

	// Wait until the first cycle is inside its provider fetch.
	<-tasks.FetchStarted

	_, err := engine.RunCycle(context.Background())
	assert.ErrorIs(t, err, syncengine.ErrAlreadyRunning)
	assert.True(t, engine.InFlight())

	close(tasks.FetchGate)
	<-firstDone

	// The guard is released after the cycle ends.
	_, err = engine.RunCycle(context.Background())
	assert.NoError(t, err)
}

func TestRunCycle_FetchFailureProducesFailedResult(t *testing.T) {
	engine, tasks, _, store := newTestEngine(t)
	tasks.FetchErr = provider.ErrUnavailable

	res, err := engine.RunCycle(context.Background())

	require.NoError(t, err, "cycle failures surface through the result, not the error")
	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Contains(t, res.ErrorMessage, "fetch tasks")
	require.Len(t, store.Results(), 1)
}

func TestRunCycle_AbortKeepsPartialCounts(t *testing.T) {
	engine, tasks, reminders, _ := newTestEngine(t)
	tasks.AddItem("", model.Item{ExternalID: "t1", Title: "First"})
	tasks.AddItem("", model.Item{ExternalID: "t2", Title: "Second"})
	reminders.CreateErr = nil

	// First create succeeds, then the provider goes away.
	res, err := engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.RemindersSynced)

	// New cycle with a hard failure after zero applies.
	reminders.CreateErr = provider.ErrUnavailable
	tasks.AddItem("", model.Item{ExternalID: "t3", Title: "Third"})

	res, err = engine.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Zero(t, res.RemindersSynced)
	assert.Contains(t, res.ErrorMessage, "apply create on reminders")
}

func TestRunCycle_ValidationErrorSkipsSingleAction(t *testing.T) {
	engine, tasks, reminders, _ := newTestEngine(t)
	// An item with a blank title is rejected by the adapter with a
	// validation error; the other item still syncs.
	tasks.AddItem("", model.Item{ExternalID: "t1", Title: "   "})
	tasks.AddItem("", model.Item{ExternalID: "t2", Title: "Valid"})

	res, err := engine.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, res.Status)
	assert.Equal(t, 1, res.RemindersSynced)
	assert.Contains(t, res.ErrorMessage, "skipped 1 invalid item")
	require.Len(t, reminders.Items(""), 1)
}

func TestRunCycle_UsesConfiguredDirection(t *testing.T) {
	engine, _, reminders, store := newTestEngine(t)
	reminders.AddItem("", model.Item{ExternalID: "r1", Title: "Reminder only"})

	settings := model.DefaultSettings()
	settings.Direction = model.DirectionTasksToReminders
	require.NoError(t, store.SaveSettings(context.Background(), settings))

	res, err := engine.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, model.DirectionTasksToReminders, res.Direction)
	// The reminder-only item must not be created on the tasks side.
	assert.Zero(t, res.TasksSynced)
}

func TestRunCycle_SettingsLoadFailure(t *testing.T) {
	tasks := testutil.NewFakeProvider(model.SourceTasks)
	reminders := testutil.NewFakeProvider(model.SourceReminders)
	store := testutil.NewMemStore()
	store.GetSettingsErr = context.DeadlineExceeded
	engine := syncengine.NewEngine(tasks, reminders, store)

	res, err := engine.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Contains(t, res.ErrorMessage, "load settings")
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
}

func TestRunCycle_ResultTimestamps(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	before := time.Now().Add(-time.Second)
	res, err := engine.RunCycle(context.Background())
	after := time.Now().Add(time.Second)

	require.NoError(t, err)
	assert.True(t, res.StartedAt.After(before) && res.StartedAt.Before(after))
	assert.True(t, !res.FinishedAt.Before(res.StartedAt))
}
