// Package model defines the provider-agnostic data types shared by the
// sync engine, the store, and the HTTP layer.
package model

import (
	"fmt"
	"time"
)

// Source identifies which provider an item or action belongs to.
type Source string

const (
	// SourceTasks is the Google Tasks provider.
	SourceTasks Source = "tasks"

	// SourceReminders is the Apple Reminders provider.
	SourceReminders Source = "reminders"
)

// Direction restricts which provider receives create/update propagation.
// Completion propagates both ways regardless of direction.
type Direction string

const (
	DirectionBidirectional    Direction = "bidirectional"
	DirectionTasksToReminders Direction = "tasks_to_reminders"
	DirectionRemindersToTasks Direction = "reminders_to_tasks"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionBidirectional, DirectionTasksToReminders, DirectionRemindersToTasks:
		return true
	}
	return false
}

// AllowsToReminders reports whether tasks-side changes may flow to Reminders.
func (d Direction) AllowsToReminders() bool {
	return d == DirectionBidirectional || d == DirectionTasksToReminders
}

// AllowsToTasks reports whether reminders-side changes may flow to Tasks.
func (d Direction) AllowsToTasks() bool {
	return d == DirectionBidirectional || d == DirectionRemindersToTasks
}

// Status is the final outcome of a sync cycle.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Item is the normalized in-memory representation of a task or reminder.
// Items are rebuilt fresh from provider fetches each cycle and never
// persisted; only results and settings survive across cycles.
type Item struct {
	// ExternalID is the provider-assigned ID, opaque to the engine.
	// Unique within one provider's item set for a single cycle.
	ExternalID string

	Title string

	// Notes is nil when the provider reports no notes. A nil Notes and an
	// empty string are distinct values and never compare equal.
	Notes *string

	// DueAt is nil when the item has no due date.
	DueAt *time.Time

	Completed bool
	UpdatedAt time.Time
	Source    Source

	// LinkID is the external ID of the paired item on the other provider,
	// when the provider records one. It is advisory: an item on the other
	// side may have been deleted since the link was written.
	LinkID string
}

// Pair joins the two provider views of one logical item. At least one side
// is non-nil; a pair with both sides present is linked.
type Pair struct {
	A *Item // Google Tasks side
	B *Item // Apple Reminders side
}

// Linked reports whether both provider sides are present.
func (p Pair) Linked() bool { return p.A != nil && p.B != nil }

// Op is the kind of change an Action applies.
type Op string

const (
	OpCreate   Op = "create"
	OpUpdate   Op = "update"
	OpComplete Op = "complete"
)

// Fields is the partial update payload for OpUpdate. Each field is
// tri-state: unchanged, set to a value, or (for notes and due) cleared.
type Fields struct {
	// Title is nil when the title is unchanged.
	Title *string

	// Notes is applied only when SetNotes is true; nil clears the notes.
	SetNotes bool
	Notes    *string

	// DueAt is applied only when SetDue is true; nil clears the due date.
	SetDue bool
	DueAt  *time.Time
}

// Empty reports whether the payload changes nothing.
func (f Fields) Empty() bool {
	return f.Title == nil && !f.SetNotes && !f.SetDue
}

// Action is one change to apply to a provider during a cycle.
type Action struct {
	Op Op

	// Target is the provider that receives the change.
	Target Source

	// TargetID is the external ID acted on. Empty for OpCreate.
	TargetID string

	// Item is the source-side item to copy from. Set for OpCreate.
	Item *Item

	// Fields is the partial update payload. Set for OpUpdate.
	Fields Fields
}

// Result records the outcome of one sync cycle.
type Result struct {
	ID              int64     `json:"id"`
	Status          Status    `json:"status"`
	Direction       Direction `json:"direction"`
	TasksSynced     int       `json:"tasks_synced"`
	RemindersSynced int       `json:"reminders_synced"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// Settings is the persisted sync configuration.
type Settings struct {
	IntervalMinutes int       `json:"sync_interval_minutes"`
	Direction       Direction `json:"sync_direction"`

	// TaskListID selects the Google Tasks list. "@default" is the
	// user's default list.
	TaskListID string `json:"task_list_id,omitempty"`

	// ReminderListID selects the Apple Reminders list. Empty means the
	// bridge's default list.
	ReminderListID string `json:"reminder_list_id,omitempty"`
}

// DefaultSettings returns the settings used before any are saved.
func DefaultSettings() Settings {
	return Settings{
		IntervalMinutes: 15,
		Direction:       DirectionBidirectional,
		TaskListID:      "@default",
	}
}

// Validate checks that the settings are usable.
func (s Settings) Validate() error {
	if s.IntervalMinutes < 1 {
		return fmt.Errorf("sync interval must be positive, got %d", s.IntervalMinutes)
	}
	if !s.Direction.Valid() {
		return fmt.Errorf("unknown sync direction: %q", s.Direction)
	}
	return nil
}
