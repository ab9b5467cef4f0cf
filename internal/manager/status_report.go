package manager

import (
	"sort"
	"time"

	"styled/pkg/types"
)

// Status builds a detailed status response for /status.
func (d *Dispatcher) Status() types.StatusResponse {
	m := d.mgr
	m.mu.Lock()
	resp := types.StatusResponse{
		MaxResident:    m.maxResident,
		EvictionsTotal: m.evictionsTotal,
		LoadsTotal:     m.loadsTotal,
		LastError:      m.lastErr,
		UptimeSeconds:  int64(time.Since(d.startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
		ProcessedTotal: make(map[string]uint64, len(d.processed)),
	}
	for _, b := range d.order {
		kind := b.Kind()
		resp.Backends = append(resp.Backends, types.BackendStatus{
			Kind:          string(kind),
			Available:     d.available[kind],
			ResidentCount: len(m.residency[kind]),
		})
	}
	for kind, entries := range m.residency {
		for _, e := range entries {
			resp.Residency = append(resp.Residency, types.ResidencyStatus{
				Backend:      string(kind),
				StyleID:      e.StyleID,
				State:        string(e.State),
				LastUsedTick: e.LastUsedTick,
			})
		}
	}
	m.mu.Unlock()

	sort.Slice(resp.Residency, func(i, j int) bool {
		if resp.Residency[i].Backend != resp.Residency[j].Backend {
			return resp.Residency[i].Backend < resp.Residency[j].Backend
		}
		return resp.Residency[i].StyleID < resp.Residency[j].StyleID
	})
	for kind, c := range d.processed {
		resp.ProcessedTotal[string(kind)] = c.Load()
	}
	resp.FallbacksTotal = d.fallbacks.Load()
	return resp
}
