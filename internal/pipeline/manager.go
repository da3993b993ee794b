package pipeline

import (
	"context"
	"sync/atomic"

	"example.com/flightlog/internal/logdata"
)

// Manager owns the current dataset. Loads build the replacement off to the
// side and publish it with a single atomic swap, so readers always see
// either the old complete dataset or the new one, never a partial state.
// When loads race, the last successful swap wins.
type Manager struct {
	loader  *Loader
	current atomic.Pointer[logdata.LogDataset]
}

func NewManager(loader *Loader) *Manager {
	return &Manager{loader: loader}
}

// Load runs the full pipeline for path and, on success, publishes the new
// dataset. A failed load leaves the current dataset untouched.
func (m *Manager) Load(ctx context.Context, path string) (*logdata.LogDataset, error) {
	ds, err := m.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	m.current.Store(ds)
	return ds, nil
}

// Current returns the published dataset, or nil before the first successful
// load.
func (m *Manager) Current() *logdata.LogDataset {
	return m.current.Load()
}
