package types

// StylesResponse wraps the list of styles returned by GET /styles.
type StylesResponse struct {
	// List of available styles.
	Styles []Style `json:"styles"`
}

// LoadedStylesResponse is returned by GET /styles/loaded.
type LoadedStylesResponse struct {
	// Style ids resident on at least one backend, sorted.
	Loaded []string `json:"loaded"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: style not found: nonexistent_style
	Error string `json:"error" example:"style not found: nonexistent_style"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// ResidencyStatus summarizes one resident style on one backend for /status.
type ResidencyStatus struct {
	// Backend holding the resident style.
	// example: cpu
	Backend string `json:"backend" example:"cpu"`
	// Style id.
	// example: cyberpunk_neon
	StyleID string `json:"style_id" example:"cyberpunk_neon"`
	// Lifecycle state of the entry (loading or resident).
	// example: resident
	State string `json:"state" example:"resident"`
	// Monotonic tick of the last process call touching this entry.
	// example: 42
	LastUsedTick uint64 `json:"last_used_tick" example:"42"`
}

// BackendStatus reports one backend's availability for /status.
type BackendStatus struct {
	// Backend kind identifier.
	// example: gpu
	Kind string `json:"kind" example:"gpu"`
	// Whether the startup probe succeeded.
	// example: false
	Available bool `json:"available" example:"false"`
	// Number of styles currently resident.
	// example: 2
	ResidentCount int `json:"resident_count" example:"2"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Backends in priority order with probe results.
	Backends []BackendStatus `json:"backends"`
	// Resident styles across all backends.
	Residency []ResidencyStatus `json:"residency"`
	// Maximum resident styles allowed per backend.
	// example: 2
	MaxResident int `json:"max_resident" example:"2"`
	// Total number of LRU evictions performed.
	// example: 5
	EvictionsTotal uint64 `json:"evictions_total" example:"5"`
	// Total number of style loads.
	// example: 12
	LoadsTotal uint64 `json:"loads_total" example:"12"`
	// Total process calls served per backend kind.
	ProcessedTotal map[string]uint64 `json:"processed_total"`
	// Total demotions to a lower-priority backend.
	// example: 3
	FallbacksTotal uint64 `json:"fallbacks_total" example:"3"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
