// Package settings stores the user's preferences: home province and the
// magnitude range for notifications.
package settings

import (
	"context"
	"strings"
	"sync"
)

const (
	DefaultProvince = "İstanbul"
	MinNotify       = 1
	MaxNotify       = 9
)

// Settings are the persisted user preferences.
type Settings struct {
	Province             string `json:"province" db:"province"`
	NotificationsEnabled bool   `json:"notifications_enabled" db:"notifications_enabled"`
	NotifyMin            int    `json:"notify_min" db:"notify_min"`
	NotifyMax            int    `json:"notify_max" db:"notify_max"`
}

// Defaults returns the settings used before anything is stored.
func Defaults() Settings {
	return Settings{
		Province:  DefaultProvince,
		NotifyMin: MinNotify,
		NotifyMax: MaxNotify,
	}
}

// Normalize clamps the notification range so that
// MinNotify <= NotifyMin <= NotifyMax <= MaxNotify. A blank province falls
// back to the default.
func (s Settings) Normalize() Settings {
	s.Province = strings.TrimSpace(s.Province)
	if s.Province == "" {
		s.Province = DefaultProvince
	}
	s.NotifyMin = clamp(s.NotifyMin, MinNotify, MaxNotify)
	s.NotifyMax = clamp(s.NotifyMax, s.NotifyMin, MaxNotify)
	return s
}

// Notifies reports whether an event of the given magnitude falls in the
// enabled notification range. Unknown magnitudes never notify.
func (s Settings) Notifies(magnitude *float64) bool {
	if !s.NotificationsEnabled || magnitude == nil {
		return false
	}
	return *magnitude >= float64(s.NotifyMin) && *magnitude <= float64(s.NotifyMax)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// Store persists settings. Put stores the normalized value and returns it.
type Store interface {
	Get(ctx context.Context) (Settings, error)
	Put(ctx context.Context, s Settings) (Settings, error)
}

// MemoryStore keeps settings in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	settings Settings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: Defaults()}
}

func (m *MemoryStore) Get(_ context.Context) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings, nil
}

func (m *MemoryStore) Put(_ context.Context, s Settings) (Settings, error) {
	s = s.Normalize()
	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()
	return s, nil
}
