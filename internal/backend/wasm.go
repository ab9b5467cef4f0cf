package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"styled/internal/common/fsutil"
	"styled/internal/kernel"
	"styled/pkg/types"
)

// wasmMagic is the 4-byte module header every WebAssembly binary starts with.
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

// Exports the engine module must provide before it is executed. Checking
// the compiled module's export table replaces the old global-flag polling.
var requiredExports = []string{
	"is_initialized",
	"stylize",
	"load_style",
	"input_ptr",
	"input_bytes_cap",
	"output_ptr",
}

const maxArtifactBytes = 64 << 20

// WASMBackend hosts the stylization engine inside a wazero runtime. The
// engine bytecode is fetched by URL or path at probe time; per-style
// artifacts are fetched on LoadStyle and handed to the module. A missing
// or malformed artifact makes this backend unavailable, never fatal.
//
// Module ABI, all exports validated before execution:
//
//	is_initialized() -> i32            1 once the engine is ready
//	input_ptr / input_bytes_cap        staging region for pixels and artifacts
//	output_ptr                         result region
//	load_style(code, len) -> i32       0 on success, artifact pre-written to input
//	stylize(w, h, code, strength) -> i32  output byte count
type WASMBackend struct {
	mu sync.Mutex

	log       zerolog.Logger
	engineSrc string
	client    *http.Client

	runtime wazero.Runtime
	mod     api.Module

	inputPtr  uint32
	inputCap  uint32
	outputPtr uint32

	loaded map[string]bool

	probed bool
	ready  bool
}

// NewWASMBackend constructs the managed-runtime backend. engineSrc is an
// http(s) URL or a filesystem path to the engine's wasm bytecode; empty
// means the backend probes unavailable.
func NewWASMBackend(engineSrc string, client *http.Client, log zerolog.Logger) *WASMBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &WASMBackend{
		log:       log.With().Str("backend", string(KindWASM)).Logger(),
		engineSrc: engineSrc,
		client:    client,
		loaded:    make(map[string]bool),
	}
}

func (b *WASMBackend) Kind() Kind { return KindWASM }

// Probe fetches, validates, and instantiates the engine module, then asks
// it whether it initialized. Fails closed on any step; the result is cached.
func (b *WASMBackend) Probe(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.probed {
		return b.ready
	}
	b.probed = true
	if err := b.initRuntime(ctx); err != nil {
		b.log.Info().Err(err).Msg("wasm engine unavailable")
		if b.runtime != nil {
			_ = b.runtime.Close(ctx)
			b.runtime = nil
		}
		b.ready = false
		return false
	}
	b.ready = true
	return true
}

func (b *WASMBackend) initRuntime(ctx context.Context) error {
	if b.engineSrc == "" {
		return fmt.Errorf("no engine module configured")
	}
	body, err := fetchBytes(ctx, b.client, b.engineSrc)
	if err != nil {
		return fmt.Errorf("fetch engine: %w", err)
	}
	if err := validateEngineModule(body); err != nil {
		return err
	}
	b.runtime = wazero.NewRuntime(ctx)
	compiled, err := b.runtime.CompileModule(ctx, body)
	if err != nil {
		return fmt.Errorf("compile engine: %w", err)
	}
	exports := compiled.ExportedFunctions()
	for _, name := range requiredExports {
		if _, ok := exports[name]; ok {
			continue
		}
		// ptr/cap markers may be exported as globals instead of functions.
		if isMemoryMarker(name) {
			continue
		}
		return fmt.Errorf("engine missing export %q", name)
	}
	mod, err := b.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("styled-engine"))
	if err != nil {
		return fmt.Errorf("instantiate engine: %w", err)
	}
	b.mod = mod

	init, err := callI32(ctx, mod, "is_initialized")
	if err != nil {
		return err
	}
	if init != 1 {
		return fmt.Errorf("engine reported uninitialized (%d)", init)
	}

	b.inputPtr, err = exportedValue(ctx, mod, "input_ptr")
	if err != nil {
		return err
	}
	b.inputCap, err = exportedValue(ctx, mod, "input_bytes_cap")
	if err != nil {
		return err
	}
	b.outputPtr, err = exportedValue(ctx, mod, "output_ptr")
	if err != nil {
		return err
	}
	b.log.Info().Uint32("input_cap", b.inputCap).Msg("wasm engine initialized")
	return nil
}

// isMemoryMarker reports whether the export may be a global rather than a
// function (pointer and capacity markers).
func isMemoryMarker(name string) bool {
	return name == "input_ptr" || name == "input_bytes_cap" || name == "output_ptr"
}

// validateEngineModule rejects bytecode that cannot be a usable engine
// before any of it executes.
func validateEngineModule(body []byte) error {
	if len(body) < 8 {
		return fmt.Errorf("engine module truncated (%d bytes)", len(body))
	}
	if !bytes.Equal(body[:4], wasmMagic) {
		return fmt.Errorf("engine module missing wasm magic")
	}
	return nil
}

// exportedValue reads a marker exported either as a global or as a
// nullary function.
func exportedValue(ctx context.Context, mod api.Module, name string) (uint32, error) {
	if g := mod.ExportedGlobal(name); g != nil {
		return uint32(g.Get()), nil
	}
	if fn := mod.ExportedFunction(name); fn != nil {
		res, err := fn.Call(ctx)
		if err != nil {
			return 0, fmt.Errorf("call %s: %w", name, err)
		}
		if len(res) == 0 {
			return 0, fmt.Errorf("%s returned no value", name)
		}
		return uint32(res[0]), nil
	}
	return 0, fmt.Errorf("engine missing export %q", name)
}

func callI32(ctx context.Context, mod api.Module, name string, args ...uint64) (int32, error) {
	fn := mod.ExportedFunction(name)
	if fn == nil {
		return 0, fmt.Errorf("engine missing export %q", name)
	}
	res, err := fn.Call(ctx, args...)
	if err != nil {
		return 0, fmt.Errorf("call %s: %w", name, err)
	}
	if len(res) == 0 {
		return 0, fmt.Errorf("%s returned no value", name)
	}
	return int32(uint32(res[0])), nil
}

// LoadStyle fetches the style artifact and registers it with the engine.
// Idempotent if already loaded.
func (b *WASMBackend) LoadStyle(ctx context.Context, style types.Style) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return &LoadError{Backend: KindWASM, StyleID: style.ID, Err: fmt.Errorf("engine not available")}
	}
	if b.loaded[style.ID] {
		return nil
	}
	if style.URL == "" {
		return &LoadError{Backend: KindWASM, StyleID: style.ID, Err: fmt.Errorf("style has no artifact url")}
	}
	artifact, err := fetchBytes(ctx, b.client, style.URL)
	if err != nil {
		return &LoadError{Backend: KindWASM, StyleID: style.ID, Err: fmt.Errorf("fetch artifact: %w", err)}
	}
	if uint32(len(artifact)) > b.inputCap {
		return &LoadError{Backend: KindWASM, StyleID: style.ID, Err: fmt.Errorf("artifact %d bytes exceeds engine capacity %d", len(artifact), b.inputCap)}
	}
	if !b.mod.Memory().Write(b.inputPtr, artifact) {
		return &LoadError{Backend: KindWASM, StyleID: style.ID, Err: fmt.Errorf("write artifact to module memory")}
	}
	rc, err := callI32(ctx, b.mod, "load_style", uint64(kernel.Code(style.ID)), uint64(uint32(len(artifact))))
	if err != nil {
		return &LoadError{Backend: KindWASM, StyleID: style.ID, Err: err}
	}
	if rc != 0 {
		return &LoadError{Backend: KindWASM, StyleID: style.ID, Err: fmt.Errorf("engine rejected artifact (rc=%d)", rc)}
	}
	b.loaded[style.ID] = true
	return nil
}

// UnloadStyle releases the engine-side registration. Idempotent if not
// loaded; a missing unload_style export only drops host-side tracking.
func (b *WASMBackend) UnloadStyle(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded[id] {
		return nil
	}
	delete(b.loaded, id)
	if b.mod != nil {
		if fn := b.mod.ExportedFunction("unload_style"); fn != nil {
			if _, err := fn.Call(context.Background(), uint64(kernel.Code(id))); err != nil {
				b.log.Warn().Err(err).Str("style", id).Msg("engine unload_style failed")
			}
		}
	}
	return nil
}

func (b *WASMBackend) Process(ctx context.Context, req types.ProcessRequest) (*types.Image, error) {
	if err := req.Image.Validate(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return nil, &ProcessError{Backend: KindWASM, Err: fmt.Errorf("engine not available")}
	}
	if !b.loaded[req.StyleID] {
		return nil, &ProcessError{Backend: KindWASM, Err: fmt.Errorf("style %s not resident", req.StyleID)}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ProcessError{Backend: KindWASM, Err: err}
	}
	pix := req.Image.Pix
	if uint32(len(pix)) > b.inputCap {
		return nil, &ProcessError{Backend: KindWASM, Err: fmt.Errorf("image %d bytes exceeds engine capacity %d", len(pix), b.inputCap)}
	}
	if !b.mod.Memory().Write(b.inputPtr, pix) {
		return nil, &ProcessError{Backend: KindWASM, Err: fmt.Errorf("write pixels to module memory")}
	}
	strength := float32(kernel.Clamp01(req.Strength))
	n, err := callI32(ctx, b.mod, "stylize",
		uint64(uint32(req.Image.Width)),
		uint64(uint32(req.Image.Height)),
		uint64(kernel.Code(req.StyleID)),
		api.EncodeF32(strength),
	)
	if err != nil {
		return nil, &ProcessError{Backend: KindWASM, Err: err}
	}
	if int(n) != len(pix) {
		return nil, &ProcessError{Backend: KindWASM, Err: fmt.Errorf("engine returned %d bytes, want %d", n, len(pix))}
	}
	data, ok := b.mod.Memory().Read(b.outputPtr, uint32(n))
	if !ok {
		return nil, &ProcessError{Backend: KindWASM, Err: fmt.Errorf("read output from module memory")}
	}
	out := types.NewImage(req.Image.Width, req.Image.Height)
	copy(out.Pix, data)
	return out, nil
}

func (b *WASMBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loaded = make(map[string]bool)
	b.mod = nil
	b.ready = false
	if b.runtime != nil {
		err := b.runtime.Close(context.Background())
		b.runtime = nil
		return err
	}
	return nil
}

// fetchBytes loads an artifact from an http(s) URL or a filesystem path.
func fetchBytes(ctx context.Context, client *http.Client, src string) ([]byte, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("GET %s: status %d", src, resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes))
	}
	path, err := fsutil.ExpandHome(src)
	if err != nil {
		return nil, err
	}
	if !fsutil.PathExists(path) {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return os.ReadFile(path)
}
