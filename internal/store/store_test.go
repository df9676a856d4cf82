package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tasksync/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestGetSettings_DefaultsWhenEmpty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	settings, err := s.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings() failed: %v", err)
	}
	want := model.DefaultSettings()
	if settings != want {
		t.Errorf("got %+v, want defaults %+v", settings, want)
	}

	configured, err := s.HasSettings(ctx)
	if err != nil {
		t.Fatalf("HasSettings() failed: %v", err)
	}
	if configured {
		t.Error("HasSettings() = true on an empty store")
	}
}

func TestSaveSettings_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	saved := model.Settings{
		IntervalMinutes: 30,
		Direction:       model.DirectionRemindersToTasks,
		TaskListID:      "work-list",
		ReminderListID:  "cal-1",
	}
	if err := s.SaveSettings(ctx, saved); err != nil {
		t.Fatalf("SaveSettings() failed: %v", err)
	}

	got, err := s.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings() failed: %v", err)
	}
	if got != saved {
		t.Errorf("got %+v, want %+v", got, saved)
	}

	configured, err := s.HasSettings(ctx)
	if err != nil {
		t.Fatalf("HasSettings() failed: %v", err)
	}
	if !configured {
		t.Error("HasSettings() = false after save")
	}
}

func TestSaveSettings_RejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	bad := model.Settings{IntervalMinutes: 0, Direction: model.DirectionBidirectional}
	if err := s.SaveSettings(ctx, bad); err == nil {
		t.Error("expected error for zero interval")
	}

	bad = model.Settings{IntervalMinutes: 5, Direction: "sideways"}
	if err := s.SaveSettings(ctx, bad); err == nil {
		t.Error("expected error for unknown direction")
	}
}

func TestRecordResult_AssignsID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := model.Result{
		Status:    model.StatusSuccess,
		Direction: model.DirectionBidirectional,
		StartedAt: time.Now().UTC(),
	}
	r.FinishedAt = r.StartedAt.Add(2 * time.Second)

	if err := s.RecordResult(ctx, &r); err != nil {
		t.Fatalf("RecordResult() failed: %v", err)
	}
	if r.ID == 0 {
		t.Error("RecordResult() did not assign an ID")
	}
}

func TestLastResult(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	last, err := s.LastResult(ctx)
	if err != nil {
		t.Fatalf("LastResult() failed: %v", err)
	}
	if last != nil {
		t.Errorf("expected nil before any cycle, got %+v", last)
	}

	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, status := range []model.Status{model.StatusFailed, model.StatusSuccess} {
		r := model.Result{
			Status:       status,
			Direction:    model.DirectionBidirectional,
			TasksSynced:  i,
			ErrorMessage: "boom",
			StartedAt:    started.Add(time.Duration(i) * time.Hour),
			FinishedAt:   started.Add(time.Duration(i)*time.Hour + time.Minute),
		}
		if err := s.RecordResult(ctx, &r); err != nil {
			t.Fatalf("RecordResult() failed: %v", err)
		}
	}

	last, err = s.LastResult(ctx)
	if err != nil {
		t.Fatalf("LastResult() failed: %v", err)
	}
	if last == nil || last.Status != model.StatusSuccess || last.TasksSynced != 1 {
		t.Errorf("LastResult() = %+v, want the second record", last)
	}
	if !last.StartedAt.Equal(started.Add(time.Hour)) {
		t.Errorf("StartedAt round trip mismatch: %v", last.StartedAt)
	}
}

func TestListResults_MostRecentFirstWithLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		r := model.Result{
			Status:     model.StatusSuccess,
			Direction:  model.DirectionBidirectional,
			StartedAt:  now,
			FinishedAt: now,
		}
		if err := s.RecordResult(ctx, &r); err != nil {
			t.Fatalf("RecordResult() failed: %v", err)
		}
	}

	results, err := s.ListResults(ctx, 3)
	if err != nil {
		t.Fatalf("ListResults() failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].ID > results[i-1].ID {
			t.Error("results not ordered most recent first")
		}
	}
}
