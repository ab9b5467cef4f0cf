package manager

import "styled/internal/backend"

// evictToCapLocked removes resident entries from a backend until at most
// capacity entries remain. Victims are resident entries with the smallest
// LastUsedTick; entries still loading are never evicted, and neither is
// keepID. Caller holds m.mu.
//
// Called twice per load: before inserting the Loading entry (capacity one
// below the cap, to make room) and again after the load succeeds (capacity
// at the cap). The second pass restores the invariant when overlapping
// loads raced past the first one while every existing entry was still
// Loading and therefore unevictable.
func (m *Manager) evictToCapLocked(kind backend.Kind, keepID, opID string, capacity int) {
	entries := m.entriesLocked(kind)
	for len(entries) > capacity {
		var lru *ResidencyEntry
		for _, e := range entries {
			if e.State != StateResident || e.StyleID == keepID {
				continue
			}
			if lru == nil || e.LastUsedTick < lru.LastUsedTick {
				lru = e
			}
		}
		if lru == nil {
			// nothing evictable
			return
		}
		delete(entries, lru.StyleID)
		m.evictionsTotal++
		if b, ok := m.backends[kind]; ok {
			if err := b.UnloadStyle(lru.StyleID); err != nil {
				m.log.Warn().Err(err).Str("backend", string(kind)).Str("style", lru.StyleID).Msg("evict unload failed")
			}
		}
		m.publisher.Publish(Event{Name: "evicted", OpID: opID, Backend: string(kind), StyleID: lru.StyleID,
			Fields: map[string]any{"last_used_tick": lru.LastUsedTick}})
	}
}
