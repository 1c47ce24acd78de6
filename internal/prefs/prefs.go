// Package prefs persists display preferences as a JSON blob in the shared
// key-value store, alongside the credential but under its own key.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gitboard/gitboard/internal/store"
)

const storeKey = "gitboard:prefs"

// Preferences are the user's display settings. The data layer only stores
// and round-trips them; interpretation belongs to the presentation layer.
type Preferences struct {
	Theme               string        `json:"theme"`
	Notifications       bool          `json:"notifications"`
	AutoRefresh         bool          `json:"auto_refresh"`
	AutoRefreshInterval time.Duration `json:"auto_refresh_interval"`
}

// Defaults returns the preference values used before the user saves any.
func Defaults() Preferences {
	return Preferences{
		Theme:               "dark",
		Notifications:       true,
		AutoRefresh:         false,
		AutoRefreshInterval: 5 * time.Minute,
	}
}

func (p Preferences) validate() error {
	switch p.Theme {
	case "dark", "light", "system":
	default:
		return fmt.Errorf("unknown theme %q", p.Theme)
	}
	if p.AutoRefreshInterval < 0 {
		return fmt.Errorf("auto refresh interval must not be negative")
	}
	return nil
}

// Manager loads and saves preferences. Reads are served from memory after
// the first load; writes go through to the store.
type Manager struct {
	kv store.KV

	mu      sync.RWMutex
	current Preferences
	loaded  bool
}

// NewManager creates a preference manager over a key-value store.
func NewManager(kv store.KV) *Manager {
	return &Manager{kv: kv}
}

// Get returns the current preferences, loading them from the store on first
// use. A missing or unreadable blob yields the defaults.
func (m *Manager) Get(ctx context.Context) Preferences {
	m.mu.RLock()
	if m.loaded {
		defer m.mu.RUnlock()
		return m.current
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return m.current
	}

	m.current = Defaults()
	m.loaded = true

	raw, err := m.kv.Get(ctx, storeKey)
	if err != nil {
		return m.current
	}
	var persisted Preferences
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		return m.current
	}
	if persisted.validate() == nil {
		m.current = persisted
	}
	return m.current
}

// Set validates and persists new preferences.
func (m *Manager) Set(ctx context.Context, prefs Preferences) error {
	if err := prefs.validate(); err != nil {
		return err
	}

	encoded, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := m.kv.Set(ctx, storeKey, string(encoded)); err != nil {
		return fmt.Errorf("persist preferences: %w", err)
	}

	m.mu.Lock()
	m.current = prefs
	m.loaded = true
	m.mu.Unlock()
	return nil
}

// Reset restores the defaults and removes the persisted blob.
func (m *Manager) Reset(ctx context.Context) error {
	if err := m.kv.Delete(ctx, storeKey); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete preferences: %w", err)
	}

	m.mu.Lock()
	m.current = Defaults()
	m.loaded = true
	m.mu.Unlock()
	return nil
}

// Export serializes the current preferences to JSON. Import of the exported
// blob reproduces the identical values.
func (m *Manager) Export(ctx context.Context) ([]byte, error) {
	current := m.Get(ctx)
	encoded, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}
	return encoded, nil
}

// Import parses an exported blob, validates it, and persists it.
func (m *Manager) Import(ctx context.Context, blob []byte) error {
	var imported Preferences
	if err := json.Unmarshal(blob, &imported); err != nil {
		return fmt.Errorf("decode preferences: %w", err)
	}
	return m.Set(ctx, imported)
}
