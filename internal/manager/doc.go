// Package manager provides style residency tracking and backend dispatch.
// It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults.
//   - types.go: internal state types (State, ResidencyEntry).
//   - errors.go: error types and helpers (IsAllBackendsFailed).
//   - ensure.go: EnsureLoaded lifecycle (Unloaded -> Loading -> Resident).
//   - evict.go: LRU eviction under the per-backend residency cap.
//   - unload.go: explicit UnloadStyle/UnloadAll.
//   - dispatch.go: Dispatcher, priority-ordered backend selection.
//   - status_report.go: Status reporting for the HTTP layer.
//   - events.go, eventpub_memory.go: lifecycle event publishing.
//
// The residency table is the only shared mutable state in the system and is
// guarded by the Manager's mutex. Backends never call back into the
// Manager, so there is no lock ordering concern.
package manager
