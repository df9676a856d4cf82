package testutil

import (
	"context"
	"sync"

	"tasksync/internal/model"
)

// MemStore is an in-memory stand-in for the SQLite store.
type MemStore struct {
	mu       sync.Mutex
	settings model.Settings
	saved    bool
	results  []model.Result

	// Error injection for testing
	GetSettingsErr error
	RecordErr      error
}

// NewMemStore creates a store holding the default settings.
func NewMemStore() *MemStore {
	return &MemStore{settings: model.DefaultSettings()}
}

// GetSettings returns the current settings.
func (m *MemStore) GetSettings(ctx context.Context) (model.Settings, error) {
	if m.GetSettingsErr != nil {
		return model.Settings{}, m.GetSettingsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

// SaveSettings validates and stores the settings.
func (m *MemStore) SaveSettings(ctx context.Context, settings model.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
	m.saved = true
	return nil
}

// HasSettings reports whether SaveSettings has been called.
func (m *MemStore) HasSettings(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved, nil
}

// RecordResult appends a result and assigns it the next ID.
func (m *MemStore) RecordResult(ctx context.Context, r *model.Result) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.results) + 1)
	m.results = append(m.results, *r)
	return nil
}

// LastResult returns the most recent result, or nil if none.
func (m *MemStore) LastResult(ctx context.Context) (*model.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.results) == 0 {
		return nil, nil
	}
	r := m.results[len(m.results)-1]
	return &r, nil
}

// ListResults returns up to limit results, most recent first.
func (m *MemStore) ListResults(ctx context.Context, limit int) ([]model.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Result
	for i := len(m.results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.results[i])
	}
	return out, nil
}

// Results returns a copy of every recorded result, oldest first.
func (m *MemStore) Results() []model.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Result, len(m.results))
	copy(out, m.results)
	return out
}
