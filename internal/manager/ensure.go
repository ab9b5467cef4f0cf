package manager

import (
	"context"

	"github.com/google/uuid"

	"styled/internal/backend"
)

// EnsureLoaded makes a style resident on the given backend, evicting the
// least-recently-used resident style when the backend is at its cap.
// Residency transitions: Unloaded -> Loading -> Resident on success,
// Loading -> Unloaded on failure (the dispatcher then tries the next
// backend). Already-resident styles just get their LRU tick bumped.
func (m *Manager) EnsureLoaded(ctx context.Context, b backend.Backend, styleID string) error {
	kind := b.Kind()

	m.mu.Lock()
	entries := m.entriesLocked(kind)
	if e, ok := entries[styleID]; ok && e.State == StateResident {
		e.LastUsedTick = m.nextTickLocked()
		m.mu.Unlock()
		return nil
	}
	opID := uuid.NewString()
	m.evictToCapLocked(kind, styleID, opID, m.maxResident-1)
	entries[styleID] = &ResidencyEntry{
		Backend:      kind,
		StyleID:      styleID,
		State:        StateLoading,
		LastUsedTick: m.nextTickLocked(),
	}
	m.mu.Unlock()

	m.publisher.Publish(Event{Name: "load_start", OpID: opID, Backend: string(kind), StyleID: styleID})
	style := m.StyleByID(styleID)
	err := b.LoadStyle(ctx, style)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		delete(m.entriesLocked(kind), styleID)
		m.lastErr = err.Error()
		m.log.Warn().Err(err).Str("backend", string(kind)).Str("style", styleID).Msg("style load failed")
		m.publisher.Publish(Event{Name: "load_failed", OpID: opID, Backend: string(kind), StyleID: styleID,
			Fields: map[string]any{"error": err.Error()}})
		return err
	}
	if e, ok := m.entriesLocked(kind)[styleID]; ok {
		e.State = StateResident
		e.LastUsedTick = m.nextTickLocked()
	}
	// Overlapping loads can leave the backend over the cap when every entry
	// was still Loading at insert time; now that this one is resident the
	// cap can be enforced again.
	m.evictToCapLocked(kind, styleID, opID, m.maxResident)
	m.loadsTotal++
	m.publisher.Publish(Event{Name: "load_done", OpID: opID, Backend: string(kind), StyleID: styleID})
	return nil
}
