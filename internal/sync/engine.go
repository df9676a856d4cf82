// Package sync implements the two-way reconciliation engine: matching
// items across the two providers, computing the actions that bring them
// into agreement, and running sync cycles on demand or on a schedule.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"tasksync/internal/model"
	"tasksync/internal/provider"
)

// ErrAlreadyRunning is returned when a cycle is triggered while another
// is in flight. The caller is rejected immediately, never queued.
var ErrAlreadyRunning = errors.New("sync already running")

// ResultStore is the slice of the persistence layer the engine needs.
type ResultStore interface {
	GetSettings(ctx context.Context) (model.Settings, error)
	RecordResult(ctx context.Context, r *model.Result) error
}

// Engine runs sync cycles end to end: fetch, match, reconcile, apply,
// record. At most one cycle runs at a time; the single-flight guard is
// held from cycle start to cycle end on every exit path.
type Engine struct {
	tasks     provider.Provider
	reminders provider.Provider
	store     ResultStore

	inFlight atomic.Bool
	now      func() time.Time
}

// NewEngine creates an engine over the two provider adapters and the
// result store.
func NewEngine(tasks, reminders provider.Provider, store ResultStore) *Engine {
	return &Engine{
		tasks:     tasks,
		reminders: reminders,
		store:     store,
		now:       time.Now,
	}
}

// RunCycle executes one sync cycle using the stored settings.
//
// A concurrent call while a cycle is in flight fails fast with
// ErrAlreadyRunning. Every other outcome, including provider failures,
// produces a Result: failures are reported through Status and
// ErrorMessage with the counts of actions already applied, and the
// result is persisted before returning.
func (e *Engine) RunCycle(ctx context.Context) (model.Result, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return model.Result{}, ErrAlreadyRunning
	}
	defer e.inFlight.Store(false)

	res := model.Result{
		Status:    model.StatusFailed,
		Direction: model.DirectionBidirectional,
		StartedAt: e.now().UTC(),
	}

	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		res.ErrorMessage = fmt.Sprintf("load settings: %v", err)
		e.finish(ctx, &res)
		return res, nil
	}
	res.Direction = settings.Direction

	slog.Info("sync cycle started", "direction", settings.Direction)
	e.runCycle(ctx, settings, &res)
	e.finish(ctx, &res)

	slog.Info("sync cycle finished",
		"status", res.Status,
		"tasks_synced", res.TasksSynced,
		"reminders_synced", res.RemindersSynced,
		"error", res.ErrorMessage)
	return res, nil
}

// InFlight reports whether a cycle is currently running.
func (e *Engine) InFlight() bool {
	return e.inFlight.Load()
}

func (e *Engine) runCycle(ctx context.Context, settings model.Settings, res *model.Result) {
	itemsA, err := e.tasks.FetchItems(ctx, settings.TaskListID)
	if err != nil {
		res.ErrorMessage = fmt.Sprintf("fetch tasks: %v", err)
		return
	}

	itemsB, err := e.reminders.FetchItems(ctx, settings.ReminderListID)
	if err != nil {
		res.ErrorMessage = fmt.Sprintf("fetch reminders: %v", err)
		return
	}

	pairs := Match(itemsA, itemsB)
	actions := Reconcile(pairs, settings.Direction)
	slog.Debug("reconciled",
		"tasks", len(itemsA),
		"reminders", len(itemsB),
		"pairs", len(pairs),
		"actions", len(actions))

	var skipped []string
	for _, act := range actions {
		err := e.apply(ctx, settings, act)
		if errors.Is(err, provider.ErrValidation) {
			// Malformed item data only poisons its own action.
			slog.Warn("action skipped", "op", act.Op, "target", act.Target, "err", err)
			skipped = append(skipped, err.Error())
			continue
		}
		if err != nil {
			res.ErrorMessage = fmt.Sprintf("apply %s on %s: %v", act.Op, act.Target, err)
			return
		}
		switch act.Target {
		case model.SourceTasks:
			res.TasksSynced++
		case model.SourceReminders:
			res.RemindersSynced++
		}
	}

	res.Status = model.StatusSuccess
	if len(skipped) > 0 {
		res.ErrorMessage = fmt.Sprintf("skipped %d invalid items: %s",
			len(skipped), skipped[0])
	}
}

func (e *Engine) apply(ctx context.Context, settings model.Settings, act model.Action) error {
	target, listID := e.reminders, settings.ReminderListID
	if act.Target == model.SourceTasks {
		target, listID = e.tasks, settings.TaskListID
	}

	switch act.Op {
	case model.OpCreate:
		_, err := target.CreateItem(ctx, listID, *act.Item)
		return err
	case model.OpUpdate:
		return target.UpdateItem(ctx, listID, act.TargetID, act.Fields)
	case model.OpComplete:
		return target.CompleteItem(ctx, listID, act.TargetID)
	default:
		return fmt.Errorf("unknown action op: %q", act.Op)
	}
}

func (e *Engine) finish(ctx context.Context, res *model.Result) {
	res.FinishedAt = e.now().UTC()
	if err := e.store.RecordResult(ctx, res); err != nil {
		slog.Error("record sync result failed", "err", err)
	}
}
