package manager

import (
	"github.com/rs/zerolog"

	"styled/internal/backend"
	"styled/pkg/types"
)

// defaultMaxResident caps concurrently loaded styles per backend to keep
// memory bounded. Matches the reference policy of two warm models.
const defaultMaxResident = 2

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Registry    []types.Style
	Backends    []backend.Backend
	MaxResident int
	Publisher   EventPublisher
	Logger      zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig, applying package
// defaults for unset fields.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		registry:    cfg.Registry,
		maxResident: cfg.MaxResident,
		residency:   make(map[backend.Kind]map[string]*ResidencyEntry),
		backends:    make(map[backend.Kind]backend.Backend),
		publisher:   cfg.Publisher,
		log:         cfg.Logger,
	}
	if m.maxResident <= 0 {
		m.maxResident = defaultMaxResident
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	for _, b := range cfg.Backends {
		m.backends[b.Kind()] = b
	}
	return m
}

// New constructs a Manager with default tunables.
func New(reg []types.Style, backends []backend.Backend, log zerolog.Logger) *Manager {
	return NewWithConfig(ManagerConfig{Registry: reg, Backends: backends, Logger: log})
}
