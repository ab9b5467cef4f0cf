package backend

import (
	"context"

	"github.com/rs/zerolog"

	"styled/internal/kernel"
	"styled/pkg/types"
)

// CPUBackend is the reference implementation and terminal fallback: a
// scalar double loop over pixels via the kernel package. It holds no
// per-style resources and cannot fail for a well-formed image, which makes
// it the correctness oracle the accelerated backends are validated against.
type CPUBackend struct {
	log zerolog.Logger
}

func NewCPUBackend(log zerolog.Logger) *CPUBackend {
	return &CPUBackend{log: log.With().Str("backend", string(KindCPU)).Logger()}
}

func (b *CPUBackend) Kind() Kind { return KindCPU }

// Probe always succeeds; the CPU path has no device to acquire.
func (b *CPUBackend) Probe(context.Context) bool { return true }

// LoadStyle is a no-op: every style, known or not, is always servable.
func (b *CPUBackend) LoadStyle(_ context.Context, style types.Style) error {
	b.log.Debug().Str("style", style.ID).Msg("style ready")
	return nil
}

func (b *CPUBackend) UnloadStyle(string) error { return nil }

func (b *CPUBackend) Process(ctx context.Context, req types.ProcessRequest) (*types.Image, error) {
	if err := req.Image.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &ProcessError{Backend: KindCPU, Err: err}
	}
	return kernel.Stylize(req.Image, req.StyleID, req.Strength), nil
}

func (b *CPUBackend) Close() error { return nil }
