package googletasks

import (
	"errors"
	"testing"
	"time"

	tasks "google.golang.org/api/tasks/v1"

	"tasksync/internal/model"
	"tasksync/internal/provider"
)

func TestWrapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"timeout", errors.New("Get \"...\": context deadline exceeded"), provider.ErrUnavailable},
		{"unauthorized", errors.New("googleapi: Error 401: Invalid Credentials"), provider.ErrAuthExpired},
		{"forbidden", errors.New("googleapi: Error 403: Insufficient Permission"), provider.ErrAuthExpired},
		{"not found", errors.New("googleapi: Error 404: Not Found"), provider.ErrNotFound},
		{"bad request", errors.New("googleapi: Error 400: Invalid task"), provider.ErrValidation},
		{"server error", errors.New("googleapi: Error 503: Backend Error"), provider.ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := wrapError(tc.err)
			if !errors.Is(got, tc.want) {
				t.Errorf("wrapError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}

	if wrapError(nil) != nil {
		t.Error("wrapError(nil) should be nil")
	}
}

func TestToItem(t *testing.T) {
	task := &tasks.Task{
		Id:      "t1",
		Title:   "Buy milk",
		Notes:   "2%",
		Status:  "completed",
		Due:     "2026-03-05T00:00:00Z",
		Updated: "2026-03-01T10:30:00.000Z",
	}

	item := toItem(task)

	if item.ExternalID != "t1" || item.Title != "Buy milk" {
		t.Errorf("unexpected identity: %+v", item)
	}
	if !item.Completed {
		t.Error("completed status not mapped")
	}
	if item.Source != model.SourceTasks {
		t.Errorf("source = %q", item.Source)
	}
	if item.Notes == nil || *item.Notes != "2%" {
		t.Errorf("notes = %v", item.Notes)
	}
	if item.DueAt == nil || !item.DueAt.Equal(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("due = %v", item.DueAt)
	}
	if item.UpdatedAt.IsZero() {
		t.Error("updated not parsed")
	}
}

func TestToItemAbsentFields(t *testing.T) {
	item := toItem(&tasks.Task{Id: "t2", Title: "Bare", Status: "needsAction"})

	if item.Notes != nil {
		t.Errorf("absent notes should stay nil, got %q", *item.Notes)
	}
	if item.DueAt != nil {
		t.Errorf("absent due should stay nil, got %v", item.DueAt)
	}
	if item.Completed {
		t.Error("needsAction mapped to completed")
	}
}

func TestFromItem(t *testing.T) {
	notes := "wire it"
	due := time.Date(2026, 3, 5, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	task := fromItem(model.Item{
		Title:     "Pay rent",
		Notes:     &notes,
		DueAt:     &due,
		Completed: false,
	})

	if task.Title != "Pay rent" || task.Notes != "wire it" {
		t.Errorf("unexpected task: %+v", task)
	}
	if task.Status != "needsAction" {
		t.Errorf("status = %q", task.Status)
	}
	if task.Due != "2026-03-05T11:00:00Z" {
		t.Errorf("due should be UTC RFC3339, got %q", task.Due)
	}

	completed := fromItem(model.Item{Title: "Done", Completed: true})
	if completed.Status != "completed" {
		t.Errorf("status = %q", completed.Status)
	}
}
