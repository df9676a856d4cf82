// Package provider defines the adapter contract the sync engine drives.
// Both backends implement Provider; the engine never imports a backend
// package directly.
package provider

import (
	"context"
	"errors"

	"tasksync/internal/model"
)

// Sentinel errors adapters wrap their failures with. The engine branches
// on these with errors.Is to decide whether to abort, skip, or surface
// an auth problem.
var (
	// ErrAuthExpired means the provider credential is invalid or expired.
	// The cycle aborts; the engine never retries on its own.
	ErrAuthExpired = errors.New("provider credential expired")

	// ErrUnavailable means a transient network or service failure. The
	// cycle aborts with a partial result; the next scheduled fire is the
	// retry mechanism.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrNotFound means the target item or list does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation means the item data was rejected by the provider.
	// The engine skips the single action and continues.
	ErrValidation = errors.New("invalid item")
)

// List is a task list or reminder list on a provider.
type List struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default,omitempty"`
}

// Provider is the narrow contract the engine needs from a backend.
//
// FetchItems must include completed and hidden items: completion
// propagation requires seeing completed items on both sides.
type Provider interface {
	// FetchItems returns all items in the given list, completed included.
	// An empty listID selects the provider's default list.
	FetchItems(ctx context.Context, listID string) ([]model.Item, error)

	// CreateItem creates item in the given list and returns the new
	// provider-assigned external ID.
	CreateItem(ctx context.Context, listID string, item model.Item) (string, error)

	// UpdateItem applies a partial field update to an existing item.
	UpdateItem(ctx context.Context, listID, externalID string, fields model.Fields) error

	// CompleteItem marks an existing item completed.
	CompleteItem(ctx context.Context, listID, externalID string) error

	// ListLists returns the lists available on the provider.
	ListLists(ctx context.Context) ([]List, error)
}
