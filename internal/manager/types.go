package manager

import "styled/internal/backend"

// State represents the lifecycle state of a residency entry.
type State string

const (
	StateLoading  State = "loading"
	StateResident State = "resident"
)

// ResidencyEntry marks one style as loaded (or loading) on one backend.
// LastUsedTick is a monotonically increasing counter bumped on every
// successful process call; eviction removes the resident entry with the
// smallest tick.
type ResidencyEntry struct {
	Backend      backend.Kind
	StyleID      string
	State        State
	LastUsedTick uint64
}
