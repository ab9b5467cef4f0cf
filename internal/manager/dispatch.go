package manager

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"styled/internal/backend"
	"styled/internal/kernel"
	"styled/pkg/types"
)

// Dispatcher orchestrates backend selection. Backends are tried in the
// fixed priority order given at construction (GPU > managed runtime > CPU);
// each backend's probe runs once at construction and unavailable backends
// are skipped thereafter. Load or process failure on one backend demotes
// the request to the next; the CPU backend is the terminal fallback and
// cannot fail for well-formed input.
//
// The Dispatcher is an explicit instance owned by the caller (no package
// globals), which keeps tests free to wire in fakes.
type Dispatcher struct {
	mgr       *Manager
	order     []backend.Backend
	available map[backend.Kind]bool

	processed map[backend.Kind]*atomic.Uint64
	fallbacks atomic.Uint64

	startTime time.Time
	log       zerolog.Logger
}

// NewDispatcher probes each candidate once and caches the result.
func NewDispatcher(ctx context.Context, mgr *Manager, candidates []backend.Backend, log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		mgr:       mgr,
		order:     candidates,
		available: make(map[backend.Kind]bool, len(candidates)),
		processed: make(map[backend.Kind]*atomic.Uint64, len(candidates)),
		startTime: time.Now(),
		log:       log,
	}
	for _, b := range candidates {
		ok := b.Probe(ctx)
		d.available[b.Kind()] = ok
		d.processed[b.Kind()] = &atomic.Uint64{}
		log.Info().Str("backend", string(b.Kind())).Bool("available", ok).Msg("backend probed")
	}
	return d
}

// Ready reports whether at least one backend is available.
func (d *Dispatcher) Ready() bool {
	for _, ok := range d.available {
		if ok {
			return true
		}
	}
	return false
}

// ListStyles exposes the registry for the HTTP layer.
func (d *Dispatcher) ListStyles() []types.Style { return d.mgr.ListStyles() }

// StyleByID resolves style metadata; unknown ids get a synthesized
// descriptor so lookups never fail.
func (d *Dispatcher) StyleByID(id string) types.Style { return d.mgr.StyleByID(id) }

// LoadedStyles exposes residency for the HTTP layer.
func (d *Dispatcher) LoadedStyles() []string { return d.mgr.LoadedStyles() }

// Unload releases one style everywhere.
func (d *Dispatcher) Unload(styleID string) error { return d.mgr.UnloadStyle(styleID) }

// UnloadAll releases every resident style.
func (d *Dispatcher) UnloadAll() error { return d.mgr.UnloadAll() }

// Process runs one stylization request. The returned kind identifies the
// backend that served it. The caller always gets either a stylized image
// or a clearly fatal error; there is no silent no-op outcome.
func (d *Dispatcher) Process(ctx context.Context, req types.ProcessRequest) (*types.Image, backend.Kind, error) {
	if err := req.Image.Validate(); err != nil {
		return nil, "", err
	}
	// Canonical unit inside the core is a 0-1 fraction; clamp here so every
	// backend sees the same value.
	req.Strength = kernel.Clamp01(req.Strength)

	var errs []error
	for _, b := range d.order {
		kind := b.Kind()
		if !d.available[kind] {
			continue
		}
		if err := d.mgr.EnsureLoaded(ctx, b, req.StyleID); err != nil {
			errs = append(errs, err)
			d.fallbacks.Add(1)
			continue
		}
		out, err := b.Process(ctx, req)
		if err != nil {
			if types.IsInvalidImage(err) {
				// Programming error; never retried on another backend.
				return nil, kind, err
			}
			d.log.Warn().Err(err).Str("backend", string(kind)).Str("style", req.StyleID).Msg("process failed, trying next backend")
			errs = append(errs, err)
			d.fallbacks.Add(1)
			continue
		}
		d.mgr.Touch(kind, req.StyleID)
		d.processed[kind].Add(1)
		return out, kind, nil
	}
	return nil, "", ErrAllBackendsFailed(req.StyleID, errs)
}
