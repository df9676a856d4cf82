package sync

import (
	"math"
	"strings"
	"time"

	"tasksync/internal/model"
)

// infDistance stands in for the due-date distance of a candidate where
// either side has no due date.
const infDistance = time.Duration(math.MaxInt64)

// Match pairs Google Tasks items with Apple Reminders items one-to-one.
//
// Items carrying a LinkID that names a counterpart's external ID pair
// first. The rest pair heuristically: equal title after trimming and
// case-folding, ties broken by the smallest absolute due-date distance
// (a missing due date counts as infinitely far), remaining ties broken
// by the candidate's most recent UpdatedAt. No item ever appears in two
// pairs; whatever finds no counterpart becomes a singleton pair.
func Match(itemsA, itemsB []model.Item) []model.Pair {
	pairs := make([]model.Pair, 0, len(itemsA)+len(itemsB))
	usedB := make([]bool, len(itemsB))

	byExternalID := make(map[string]int, len(itemsB))
	for i, b := range itemsB {
		byExternalID[b.ExternalID] = i
	}

	for ai := range itemsA {
		a := &itemsA[ai]

		if bi, ok := matchByLink(a, itemsB, byExternalID, usedB); ok {
			usedB[bi] = true
			pairs = append(pairs, model.Pair{A: a, B: &itemsB[bi]})
			continue
		}

		if bi, ok := matchByTitle(a, itemsB, usedB); ok {
			usedB[bi] = true
			pairs = append(pairs, model.Pair{A: a, B: &itemsB[bi]})
			continue
		}

		pairs = append(pairs, model.Pair{A: a})
	}

	for bi := range itemsB {
		if !usedB[bi] {
			pairs = append(pairs, model.Pair{B: &itemsB[bi]})
		}
	}

	return pairs
}

// matchByLink resolves a pair through the stored cross-reference, in
// either direction. Links can be stale: a dangling LinkID is ignored.
func matchByLink(a *model.Item, itemsB []model.Item, byExternalID map[string]int, usedB []bool) (int, bool) {
	if a.LinkID != "" {
		if bi, ok := byExternalID[a.LinkID]; ok && !usedB[bi] {
			return bi, true
		}
	}
	for bi := range itemsB {
		if !usedB[bi] && itemsB[bi].LinkID != "" && itemsB[bi].LinkID == a.ExternalID {
			return bi, true
		}
	}
	return 0, false
}

// matchByTitle picks the best unused candidate with an equal normalized
// title, preferring the closest due date and then the most recently
// updated candidate.
func matchByTitle(a *model.Item, itemsB []model.Item, usedB []bool) (int, bool) {
	key := normalizeTitle(a.Title)

	best := -1
	bestDist := infDistance
	var bestUpdated time.Time

	for bi := range itemsB {
		if usedB[bi] {
			continue
		}
		b := &itemsB[bi]
		if normalizeTitle(b.Title) != key {
			continue
		}

		dist := dueDistance(a.DueAt, b.DueAt)
		switch {
		case best == -1, dist < bestDist:
			best, bestDist, bestUpdated = bi, dist, b.UpdatedAt
		case dist == bestDist && b.UpdatedAt.After(bestUpdated):
			best, bestUpdated = bi, b.UpdatedAt
		}
	}

	if best == -1 {
		return 0, false
	}
	return best, true
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func dueDistance(a, b *time.Time) time.Duration {
	if a == nil || b == nil {
		return infDistance
	}
	d := a.Sub(*b)
	if d < 0 {
		d = -d
	}
	return d
}
