package manager

import "github.com/google/uuid"

// UnloadStyle releases a style on every backend holding it. Idempotent:
// unloading a style that is not resident anywhere is a no-op.
func (m *Manager) UnloadStyle(styleID string) error {
	opID := uuid.NewString()
	m.mu.Lock()
	var kinds []string
	for kind, entries := range m.residency {
		if _, ok := entries[styleID]; !ok {
			continue
		}
		delete(entries, styleID)
		kinds = append(kinds, string(kind))
		if b, ok := m.backends[kind]; ok {
			if err := b.UnloadStyle(styleID); err != nil {
				m.log.Warn().Err(err).Str("backend", string(kind)).Str("style", styleID).Msg("unload failed")
			}
		}
	}
	m.mu.Unlock()
	for _, k := range kinds {
		m.publisher.Publish(Event{Name: "unload_done", OpID: opID, Backend: k, StyleID: styleID})
	}
	return nil
}

// UnloadAll releases every resident style on every backend.
func (m *Manager) UnloadAll() error {
	m.mu.Lock()
	var ids []string
	seen := map[string]bool{}
	for _, entries := range m.residency {
		for id := range entries {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	m.mu.Unlock()
	for _, id := range ids {
		if err := m.UnloadStyle(id); err != nil {
			return err
		}
	}
	return nil
}
