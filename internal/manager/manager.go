package manager

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"styled/internal/backend"
	"styled/pkg/types"
)

// Manager tracks which styles are resident on which backends and enforces
// the per-backend residency cap via LRU eviction. It owns the one piece of
// shared mutable state in the system.
type Manager struct {
	mu          sync.Mutex
	registry    []types.Style
	backends    map[backend.Kind]backend.Backend
	residency   map[backend.Kind]map[string]*ResidencyEntry
	maxResident int
	tick        uint64
	lastErr     string

	evictionsTotal uint64
	loadsTotal     uint64

	publisher EventPublisher
	log       zerolog.Logger
}

// ListStyles returns a copy of the registry.
func (m *Manager) ListStyles() []types.Style {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Style, len(m.registry))
	copy(out, m.registry)
	return out
}

// StyleByID resolves a descriptor from the registry. Unknown ids get a
// synthesized descriptor so that process calls still succeed via each
// backend's default transform fallback.
func (m *Manager) StyleByID(id string) types.Style {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.registry {
		if s.ID == id {
			return s
		}
	}
	return types.Style{ID: id, InputWidth: 256, InputHeight: 256, InputChannels: 3}
}

// LoadedStyles returns the sorted ids of styles resident on at least one
// backend.
func (m *Manager) LoadedStyles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	for _, entries := range m.residency {
		for id, e := range entries {
			if e.State == StateResident {
				seen[id] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ResidentOn returns the sorted style ids resident on a single backend.
func (m *Manager) ResidentOn(kind backend.Kind) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, e := range m.residency[kind] {
		if e.State == StateResident {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Touch bumps the LRU tick of a resident style after a successful process
// call.
func (m *Manager) Touch(kind backend.Kind, styleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.residency[kind][styleID]; ok {
		m.tick++
		e.LastUsedTick = m.tick
	}
}

func (m *Manager) nextTickLocked() uint64 {
	m.tick++
	return m.tick
}

func (m *Manager) entriesLocked(kind backend.Kind) map[string]*ResidencyEntry {
	entries, ok := m.residency[kind]
	if !ok {
		entries = make(map[string]*ResidencyEntry)
		m.residency[kind] = entries
	}
	return entries
}
