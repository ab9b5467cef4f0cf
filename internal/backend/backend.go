// Package backend defines the capability interface every stylization
// backend implements, plus the three concrete variants: a wgpu compute
// backend, a wazero-hosted engine, and the scalar CPU reference. All three
// execute the identical kernel contract; results are backend-agnostic up
// to floating-point rounding.
package backend

import (
	"context"

	"styled/pkg/types"
)

// Kind tags a backend variant. Dispatch priority is fixed:
// KindGPU > KindWASM > KindCPU.
type Kind string

const (
	KindGPU  Kind = "gpu"
	KindWASM Kind = "wasm"
	KindCPU  Kind = "cpu"
)

// Backend is the uniform capability interface consumed by the dispatcher.
//
// Probe must not panic and fails closed: any uncertainty about the
// underlying device or runtime reports false. LoadStyle and UnloadStyle
// are idempotent. Process returns a fresh image and never mutates the
// request's buffer.
type Backend interface {
	Kind() Kind
	Probe(ctx context.Context) bool
	LoadStyle(ctx context.Context, style types.Style) error
	UnloadStyle(id string) error
	Process(ctx context.Context, req types.ProcessRequest) (*types.Image, error)
	// Close releases all backend resources. The backend must not be used
	// after Close.
	Close() error
}
