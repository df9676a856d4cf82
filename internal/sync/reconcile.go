package sync

import (
	"time"

	"tasksync/internal/model"
)

// Reconcile turns matched pairs into the ordered list of provider actions
// for one cycle. Actions for a pair are emitted together, so applying the
// list in order never interleaves updates to the same item.
//
// Singletons become creates on the opposite side, gated by direction.
// For linked pairs, completion is monotonic: if either side is completed
// the other side receives a complete action regardless of direction.
// Title, notes, and due date propagate only in the configured direction;
// under bidirectional sync the side with the later UpdatedAt wins, and an
// exact timestamp tie produces no action.
//
// Reconcile is idempotent: pairs whose fields already agree emit nothing.
func Reconcile(pairs []model.Pair, dir model.Direction) []model.Action {
	var actions []model.Action
	for _, p := range pairs {
		switch {
		case p.Linked():
			actions = append(actions, reconcilePair(p.A, p.B, dir)...)
		case p.A != nil:
			if dir.AllowsToReminders() {
				actions = append(actions, model.Action{
					Op:     model.OpCreate,
					Target: model.SourceReminders,
					Item:   p.A,
				})
			}
		case p.B != nil:
			if dir.AllowsToTasks() {
				actions = append(actions, model.Action{
					Op:     model.OpCreate,
					Target: model.SourceTasks,
					Item:   p.B,
				})
			}
		}
	}
	return actions
}

func reconcilePair(a, b *model.Item, dir model.Direction) []model.Action {
	var out []model.Action

	// Completion always propagates toward the incomplete side. An open
	// task whose counterpart is done would otherwise come back every
	// cycle as a zombie.
	if a.Completed != b.Completed {
		if a.Completed {
			out = append(out, model.Action{
				Op:       model.OpComplete,
				Target:   model.SourceReminders,
				TargetID: b.ExternalID,
			})
		} else {
			out = append(out, model.Action{
				Op:       model.OpComplete,
				Target:   model.SourceTasks,
				TargetID: a.ExternalID,
			})
		}
	}

	src, dst := fieldWinner(a, b, dir)
	if src == nil {
		return out
	}

	fields := diffFields(src, dst)
	if fields.Empty() {
		return out
	}

	out = append(out, model.Action{
		Op:       model.OpUpdate,
		Target:   dst.Source,
		TargetID: dst.ExternalID,
		Fields:   fields,
	})
	return out
}

// fieldWinner decides which side's title/notes/due values flow to the
// other. Returns nil when no field propagation is allowed, including the
// bidirectional UpdatedAt tie, where acting on either side would just
// oscillate on the next cycle.
func fieldWinner(a, b *model.Item, dir model.Direction) (src, dst *model.Item) {
	switch dir {
	case model.DirectionTasksToReminders:
		return a, b
	case model.DirectionRemindersToTasks:
		return b, a
	case model.DirectionBidirectional:
		if a.UpdatedAt.After(b.UpdatedAt) {
			return a, b
		}
		if b.UpdatedAt.After(a.UpdatedAt) {
			return b, a
		}
	}
	return nil, nil
}

func diffFields(src, dst *model.Item) model.Fields {
	var f model.Fields
	if src.Title != dst.Title {
		title := src.Title
		f.Title = &title
	}
	if !equalNotes(src.Notes, dst.Notes) {
		f.SetNotes = true
		f.Notes = cloneString(src.Notes)
	}
	if !equalDue(src.DueAt, dst.DueAt) {
		f.SetDue = true
		f.DueAt = cloneTime(src.DueAt)
	}
	return f
}

// equalNotes treats absent notes as a distinct value: nil never equals
// the empty string.
func equalNotes(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalDue(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
