package backend

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/rs/zerolog"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"styled/internal/kernel"
	"styled/pkg/types"
)

const gpuSubmitTimeout = 5 * time.Second

// stylePipeline holds the per-style GPU resources created on LoadStyle and
// destroyed on UnloadStyle.
type stylePipeline struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

// GPUBackend executes the stylization kernel as a wgpu compute dispatch:
// one shader invocation per pixel in 8x8 workgroups, source pixels in a
// read-only storage buffer, output in a storage buffer copied to a staging
// buffer and mapped back once the submission completes. All buffers created
// during a Process call are destroyed before it returns, including on error
// paths, so an abandoned request cannot leak device memory.
type GPUBackend struct {
	mu sync.Mutex

	log      zerolog.Logger
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	pipelines map[string]*stylePipeline

	probed bool
	ready  bool
}

func NewGPUBackend(log zerolog.Logger) *GPUBackend {
	return &GPUBackend{
		log:       log.With().Str("backend", string(KindGPU)).Logger(),
		pipelines: make(map[string]*stylePipeline),
	}
}

func (b *GPUBackend) Kind() Kind { return KindGPU }

// Probe acquires instance, adapter, device, and queue. It fails closed:
// any acquisition error reports false. The result is cached.
func (b *GPUBackend) Probe(context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.probed {
		return b.ready
	}
	b.probed = true
	if err := b.initDevice(); err != nil {
		b.log.Info().Err(err).Msg("gpu unavailable")
		b.ready = false
		return false
	}
	b.ready = true
	return true
}

func (b *GPUBackend) initDevice() error {
	halBackend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := halBackend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("open device: %w", err)
	}
	b.instance = instance
	b.device = openDev.Device
	b.queue = openDev.Queue
	b.log.Info().Str("adapter", selected.Info.Name).Msg("gpu device acquired")
	return nil
}

// LoadStyle compiles the style's compute pipeline. Idempotent: a style that
// already has a pipeline is left untouched.
func (b *GPUBackend) LoadStyle(_ context.Context, style types.Style) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return &LoadError{Backend: KindGPU, StyleID: style.ID, Err: fmt.Errorf("device not available")}
	}
	if _, ok := b.pipelines[style.ID]; ok {
		return nil
	}
	p, err := b.buildPipeline(style.ID)
	if err != nil {
		return &LoadError{Backend: KindGPU, StyleID: style.ID, Err: err}
	}
	b.pipelines[style.ID] = p
	return nil
}

func (b *GPUBackend) buildPipeline(styleID string) (*stylePipeline, error) {
	p := &stylePipeline{}
	shader, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "stylize_" + styleID,
		Source: hal.ShaderSource{WGSL: shaderSource(styleID)},
	})
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	p.shader = shader

	bindLayout, err := b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "stylize_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		b.destroyPipeline(p)
		return nil, fmt.Errorf("create bind group layout: %w", err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "stylize_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		b.destroyPipeline(p)
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	pipeline, err := b.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "stylize_pipeline", Layout: pipeLayout,
		Compute: hal.ComputeState{Module: shader, EntryPoint: "main"},
	})
	if err != nil {
		b.destroyPipeline(p)
		return nil, fmt.Errorf("create compute pipeline: %w", err)
	}
	p.pipeline = pipeline
	return p, nil
}

func (b *GPUBackend) destroyPipeline(p *stylePipeline) {
	if b.device == nil || p == nil {
		return
	}
	if p.pipeline != nil {
		b.device.DestroyComputePipeline(p.pipeline)
	}
	if p.pipeLayout != nil {
		b.device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		b.device.DestroyBindGroupLayout(p.bindLayout)
	}
	if p.shader != nil {
		b.device.DestroyShaderModule(p.shader)
	}
}

// UnloadStyle destroys the style's pipeline. Idempotent if not loaded.
func (b *GPUBackend) UnloadStyle(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pipelines[id]; ok {
		b.destroyPipeline(p)
		delete(b.pipelines, id)
	}
	return nil
}

func (b *GPUBackend) Process(ctx context.Context, req types.ProcessRequest) (*types.Image, error) {
	if err := req.Image.Validate(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return nil, &ProcessError{Backend: KindGPU, Err: fmt.Errorf("device not available")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ProcessError{Backend: KindGPU, Err: err}
	}
	p, ok := b.pipelines[req.StyleID]
	if !ok {
		return nil, &ProcessError{Backend: KindGPU, Err: fmt.Errorf("style %s not resident", req.StyleID)}
	}
	out, err := b.dispatch(p, req)
	if err != nil {
		return nil, &ProcessError{Backend: KindGPU, Err: err}
	}
	return out, nil
}

// packParams serializes the 16-byte uniform block. Layout must match the
// Params struct in the WGSL template.
func packParams(w, h int, strength float64) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:], uint32(w))
	binary.LittleEndian.PutUint32(buf[4:], uint32(h))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(kernel.Clamp01(strength))))
	return buf
}

func (b *GPUBackend) dispatch(p *stylePipeline, req types.ProcessRequest) (*types.Image, error) {
	w, h := req.Image.Width, req.Image.Height
	pixelBufSize := uint64(len(req.Image.Pix))
	params := packParams(w, h, req.Strength)

	uniformBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "stylize_params", Size: uint64(len(params)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create uniform buffer: %w", err)
	}
	defer b.device.DestroyBuffer(uniformBuf)

	srcBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "stylize_src", Size: pixelBufSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create source buffer: %w", err)
	}
	defer b.device.DestroyBuffer(srcBuf)

	dstBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "stylize_dst", Size: pixelBufSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create output buffer: %w", err)
	}
	defer b.device.DestroyBuffer(dstBuf)

	stagingBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "stylize_staging", Size: pixelBufSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer b.device.DestroyBuffer(stagingBuf)

	// RGBA8 bytes already match the shader's little-endian u32 layout
	// (r | g<<8 | b<<16 | a<<24), so the pixel buffer uploads as-is.
	if err := b.queue.WriteBuffer(uniformBuf, 0, params); err != nil {
		return nil, fmt.Errorf("write uniform buffer: %w", err)
	}
	if err := b.queue.WriteBuffer(srcBuf, 0, req.Image.Pix); err != nil {
		return nil, fmt.Errorf("write source buffer: %w", err)
	}

	bindGroup, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "stylize_bind", Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: uniformBuf.NativeHandle(), Offset: 0, Size: uint64(len(params))}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: srcBuf.NativeHandle(), Offset: 0, Size: pixelBufSize}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: dstBuf.NativeHandle(), Offset: 0, Size: pixelBufSize}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	defer b.device.DestroyBindGroup(bindGroup)

	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "stylize_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("stylize"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "stylize_pass"})
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Dispatch(uint32(w+7)/8, uint32(h+7)/8, 1)
	pass.End()
	encoder.CopyBufferToBuffer(dstBuf, stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: pixelBufSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmdBuf)

	subIdx, err := b.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if err := b.waitSubmission(subIdx); err != nil {
		return nil, err
	}

	out := types.NewImage(w, h)
	mapping, err := b.device.MapBuffer(stagingBuf, 0, pixelBufSize)
	if err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	copy(out.Pix, unsafe.Slice((*byte)(mapping.Ptr), pixelBufSize))
	if err := b.device.UnmapBuffer(stagingBuf); err != nil {
		return nil, fmt.Errorf("unmap staging buffer: %w", err)
	}
	return out, nil
}

// waitSubmission blocks until the queue reports the submission index
// completed or gpuSubmitTimeout elapses. The HAL manages its own fences;
// completion is observed via PollCompleted.
func (b *GPUBackend) waitSubmission(subIdx uint64) error {
	if err := b.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	deadline := time.Now().Add(gpuSubmitTimeout)
	for b.queue.PollCompleted() < subIdx {
		if time.Now().After(deadline) {
			return fmt.Errorf("submission %d not completed after %s", subIdx, gpuSubmitTimeout)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (b *GPUBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, p := range b.pipelines {
		b.destroyPipeline(p)
		delete(b.pipelines, id)
	}
	if b.device != nil {
		b.device.Destroy()
		b.device = nil
	}
	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
	}
	b.queue = nil
	b.ready = false
	return nil
}
