package manager

// Event represents a residency lifecycle event. OpID correlates the events
// of a single load/unload operation in logs.
type Event struct {
	Name    string
	OpID    string
	Backend string
	StyleID string
	Fields  map[string]any
}

// EventPublisher receives events from the manager. Implementations should
// be lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
