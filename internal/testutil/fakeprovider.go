// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"tasksync/internal/model"
	"tasksync/internal/provider"
)

// DefaultListID is the ID used for the fake's default list.
const DefaultListID = "default"

// FakeProvider is an in-memory implementation of provider.Provider for
// testing. The empty list ID resolves to the default list, matching the
// real adapters.
type FakeProvider struct {
	mu     sync.Mutex
	source model.Source
	lists  []provider.List
	items  map[string][]model.Item // listID -> items

	// Error injection for testing
	FetchErr    error
	CreateErr   error
	UpdateErr   error
	CompleteErr error
	ListsErr    error

	// FetchStarted, when non-nil, gets a non-blocking send at the top of
	// each FetchItems call, before FetchGate is awaited. Used to hold a
	// cycle in flight.
	FetchStarted chan struct{}
	FetchGate    chan struct{}
}

// NewFakeProvider creates a fake with one default list.
func NewFakeProvider(source model.Source) *FakeProvider {
	return &FakeProvider{
		source: source,
		lists: []provider.List{
			{ID: DefaultListID, Name: "Default", IsDefault: true},
		},
		items: map[string][]model.Item{DefaultListID: nil},
	}
}

// AddList adds a list.
func (f *FakeProvider) AddList(id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, provider.List{ID: id, Name: name})
	if f.items[id] == nil {
		f.items[id] = nil
	}
}

// AddItem adds an item to a list, stamping the fake's source.
func (f *FakeProvider) AddItem(listID string, item model.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	listID = f.resolve(listID)
	item.Source = f.source
	f.items[listID] = append(f.items[listID], item)
}

// Items returns a copy of a list's items.
func (f *FakeProvider) Items(listID string) []model.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	listID = f.resolve(listID)
	out := make([]model.Item, len(f.items[listID]))
	copy(out, f.items[listID])
	return out
}

// FetchItems implements provider.Provider.
func (f *FakeProvider) FetchItems(ctx context.Context, listID string) ([]model.Item, error) {
	if f.FetchStarted != nil {
		select {
		case f.FetchStarted <- struct{}{}:
		default:
		}
	}
	if f.FetchGate != nil {
		select {
		case <-f.FetchGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	return f.Items(listID), nil
}

// CreateItem implements provider.Provider.
func (f *FakeProvider) CreateItem(ctx context.Context, listID string, item model.Item) (string, error) {
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	if strings.TrimSpace(item.Title) == "" {
		return "", provider.ErrValidation
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	listID = f.resolve(listID)

	created := item
	created.ExternalID = uuid.NewString()
	created.Source = f.source
	created.LinkID = item.ExternalID
	f.items[listID] = append(f.items[listID], created)
	return created.ExternalID, nil
}

// UpdateItem implements provider.Provider.
func (f *FakeProvider) UpdateItem(ctx context.Context, listID, externalID string, fields model.Fields) error {
	if f.UpdateErr != nil {
		return f.UpdateErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	listID = f.resolve(listID)

	for i := range f.items[listID] {
		item := &f.items[listID][i]
		if item.ExternalID != externalID {
			continue
		}
		if fields.Title != nil {
			item.Title = *fields.Title
		}
		if fields.SetNotes {
			item.Notes = fields.Notes
		}
		if fields.SetDue {
			item.DueAt = fields.DueAt
		}
		return nil
	}
	return provider.ErrNotFound
}

// CompleteItem implements provider.Provider.
func (f *FakeProvider) CompleteItem(ctx context.Context, listID, externalID string) error {
	if f.CompleteErr != nil {
		return f.CompleteErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	listID = f.resolve(listID)

	for i := range f.items[listID] {
		if f.items[listID][i].ExternalID == externalID {
			f.items[listID][i].Completed = true
			return nil
		}
	}
	return provider.ErrNotFound
}

// ListLists implements provider.Provider.
func (f *FakeProvider) ListLists(ctx context.Context) ([]provider.List, error) {
	if f.ListsErr != nil {
		return nil, f.ListsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]provider.List, len(f.lists))
	copy(out, f.lists)
	return out, nil
}

func (f *FakeProvider) resolve(listID string) string {
	if listID == "" || listID == "@default" {
		return DefaultListID
	}
	return listID
}
