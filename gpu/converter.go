package gpu

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/openfluke/tapestry/tensor"
)

// Converter errors.
var (
	// ErrConverterClosed is returned when Convert is called after Close.
	// This is a guarded programmer error, not a recoverable condition.
	ErrConverterClosed = errors.New("gpu: converter is closed")

	// ErrReadback wraps GPU synchronization failures. A Convert call that
	// returns it still returns the mirror view, whose contents are then
	// unspecified (stale or partially written); callers may skip the frame
	// or abort the session.
	ErrReadback = errors.New("gpu: tensor readback failed")
)

// ConverterSpec configures a Converter. The embedded tensor.Config fixes
// the output layout for the converter's lifetime; Entry and WGSL select the
// compute kernel, defaulting to the generated transform-and-pack kernel.
type ConverterSpec struct {
	Config tensor.Config

	// Entry is the kernel entry point, "main" when empty.
	Entry string

	// WGSL overrides the generated kernel source. A custom kernel must use
	// the same bind group layout: texture+sampler+matrix in, scratch
	// surface + f32 storage array out.
	WGSL string
}

// Converter owns the GPU resources for texture-to-tensor conversion: the
// intermediate scratch surface, the storage buffer the kernel packs into,
// and a host-visible mirror updated in place on every call.
//
// Convert blocks until the GPU readback completes. Concurrent Convert calls
// on one Converter race on the shared resources and are undefined; use one
// Converter per goroutine. Separate instances share nothing but the
// process-wide context.
type Converter struct {
	spec ConverterSpec

	pipeline   *wgpu.ComputePipeline
	sampler    *wgpu.Sampler
	surface    *Texture
	outBuf     *wgpu.Buffer
	stagingBuf *wgpu.Buffer
	uniformBuf *wgpu.Buffer

	bindGroup *wgpu.BindGroup
	boundSrc  *Texture

	// mirror backs the returned tensor view; raw receives the f32 readback
	// and aliases mirror when no element narrowing is needed.
	mirror []byte
	raw    []byte
	view   tensor.Tensor

	last   tensor.Matrix
	closed atomic.Bool
}

// NewConverter validates spec and allocates every per-converter GPU
// resource. Validation failures are fatal configuration errors raised here,
// never deferred to the first Convert.
func NewConverter(spec ConverterSpec) (*Converter, error) {
	cfg := spec.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if spec.Entry == "" {
		spec.Entry = defaultEntry
	}
	if spec.WGSL == "" {
		spec.WGSL = generateConvertShader(cfg, spec.Entry)
	}
	if !hasEntry(spec.WGSL, spec.Entry) {
		return nil, fmt.Errorf("%w: kernel entry point %q not found", tensor.ErrInvalidConfig, spec.Entry)
	}

	c, err := GetContext()
	if err != nil {
		return nil, err
	}

	f32Size := uint64(cfg.Elems()) * 4
	if rep := c.Report; rep != nil && rep.Limits.MaxStorageBufferBindingSize > 0 {
		if f32Size > rep.Limits.MaxStorageBufferBindingSize {
			return nil, fmt.Errorf("%w: tensor needs %d buffer bytes, adapter limit is %d",
				tensor.ErrInvalidConfig, f32Size, rep.Limits.MaxStorageBufferBindingSize)
		}
	}

	conv := &Converter{spec: spec, last: tensor.Identity()}

	conv.surface, err = newStorageTexture(cfg.Width, cfg.Height, "tapestry_scratch")
	if err != nil {
		return nil, err
	}

	conv.outBuf, err = c.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "tapestry_out",
		Size:  f32Size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		conv.release()
		return nil, fmt.Errorf("gpu: create output buffer: %w", err)
	}

	conv.stagingBuf, err = c.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "tapestry_staging",
		Size:  f32Size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		conv.release()
		return nil, fmt.Errorf("gpu: create staging buffer: %w", err)
	}

	conv.uniformBuf, err = c.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "tapestry_transform",
		Size:  64,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		conv.release()
		return nil, fmt.Errorf("gpu: create uniform buffer: %w", err)
	}

	conv.sampler, err = c.Device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "tapestry_sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   0,
		MaxAnisotropy: 1,
	})
	if err != nil {
		conv.release()
		return nil, fmt.Errorf("gpu: create sampler: %w", err)
	}

	mod, err := c.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "tapestry_kernel",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: spec.WGSL},
	})
	if err != nil {
		conv.release()
		return nil, fmt.Errorf("gpu: compile kernel: %w", err)
	}
	conv.pipeline, err = c.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   "tapestry_pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{Module: mod, EntryPoint: spec.Entry},
	})
	if err != nil {
		conv.release()
		return nil, fmt.Errorf("gpu: create pipeline: %w", err)
	}

	conv.mirror = make([]byte, cfg.ByteLen())
	if cfg.Element == tensor.Float32 {
		conv.raw = conv.mirror
	} else {
		conv.raw = make([]byte, f32Size)
	}
	conv.view, err = tensor.View(cfg, conv.mirror)
	if err != nil {
		conv.release()
		return nil, err
	}

	return conv, nil
}

// Spec returns the converter's configuration.
func (c *Converter) Spec() ConverterSpec { return c.spec }

// Surface returns the intermediate scratch surface holding the sampled RGBA
// image of the most recent conversion. Owned by the converter.
func (c *Converter) Surface() *Texture { return c.surface }

// LastMatrix returns the matrix used by the most recent conversion.
func (c *Converter) LastMatrix() tensor.Matrix { return c.last }

// Convert samples src under m, packs the configured channels into the GPU
// storage buffer, and blocks until the result has been read back into the
// host mirror. The returned tensor aliases the mirror and is valid until
// the next Convert call.
//
// A readback failure is degraded, not fatal: the error (wrapping
// ErrReadback) is logged and returned together with the mirror view, whose
// contents are then unspecified.
func (c *Converter) Convert(src *Texture, m tensor.Matrix) (tensor.Tensor, error) {
	if c.closed.Load() {
		return tensor.Tensor{}, ErrConverterClosed
	}
	if src == nil {
		return tensor.Tensor{}, fmt.Errorf("gpu: nil source texture")
	}

	ctx, err := GetContext()
	if err != nil {
		return tensor.Tensor{}, err
	}

	ctx.Queue.WriteBuffer(c.uniformBuf, 0, wgpu.ToBytes(m[:]))

	if err := c.ensureBindGroup(ctx, src); err != nil {
		return tensor.Tensor{}, err
	}

	enc, err := ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return tensor.Tensor{}, fmt.Errorf("gpu: create command encoder: %w", err)
	}

	cfg := c.spec.Config
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(c.pipeline)
	pass.SetBindGroup(0, c.bindGroup, nil)
	pass.DispatchWorkgroups(
		uint32((cfg.Width+kernelTile-1)/kernelTile),
		uint32((cfg.Height+kernelTile-1)/kernelTile),
		1,
	)
	pass.End()
	enc.CopyBufferToBuffer(c.outBuf, 0, c.stagingBuf, 0, c.outBuf.GetSize())

	cmd, err := enc.Finish(nil)
	if err != nil {
		return tensor.Tensor{}, fmt.Errorf("gpu: finish command encoder: %w", err)
	}
	ctx.Queue.Submit(cmd)

	c.last = m

	if err := readStagingBytes(ctx, c.stagingBuf, c.raw); err != nil {
		slogger().Warn("tensor readback failed, mirror contents unspecified", "err", err)
		return c.view, fmt.Errorf("%w: %v", ErrReadback, err)
	}
	c.narrow()

	return c.view, nil
}

// ConvertAspect derives the sampling matrix for the given aspect policy
// from the source and configured dimensions, then converts.
func (c *Converter) ConvertAspect(src *Texture, mode tensor.AspectMode) (tensor.Tensor, error) {
	if src == nil {
		return tensor.Tensor{}, fmt.Errorf("gpu: nil source texture")
	}
	m, err := c.AspectMatrix(src, mode)
	if err != nil {
		return tensor.Tensor{}, err
	}
	return c.Convert(src, m)
}

// AspectMatrix computes the sampling matrix for src under the given mode
// without performing a conversion.
func (c *Converter) AspectMatrix(src *Texture, mode tensor.AspectMode) (tensor.Matrix, error) {
	cfg := c.spec.Config
	return tensor.AspectMatrix(src.Width(), src.Height(), cfg.Width, cfg.Height, mode)
}

// Close releases every GPU resource exactly once. Safe to call repeatedly;
// Convert on a closed converter returns ErrConverterClosed.
func (c *Converter) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.release()
	return nil
}

// ensureBindGroup (re)creates the bind group when the source texture
// changed. The scratch surface, uniform and output buffer slots never vary.
func (c *Converter) ensureBindGroup(ctx *Context, src *Texture) error {
	if c.bindGroup != nil && c.boundSrc == src {
		return nil
	}
	if c.bindGroup != nil {
		c.bindGroup.Release()
		c.bindGroup = nil
	}

	bg, err := ctx.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "tapestry_bind",
		Layout: c.pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: src.View()},
			{Binding: 1, Sampler: c.sampler},
			{Binding: 2, Buffer: c.uniformBuf, Size: c.uniformBuf.GetSize()},
			{Binding: 3, TextureView: c.surface.View()},
			{Binding: 4, Buffer: c.outBuf, Size: c.outBuf.GetSize()},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create bind group: %w", err)
	}
	c.bindGroup = bg
	c.boundSrc = src
	return nil
}

// narrow converts the f32 readback into the configured element type. For
// Float32 tensors raw aliases mirror and there is nothing to do.
func (c *Converter) narrow() {
	if c.spec.Config.Element != tensor.Uint8 {
		return
	}
	fs := wgpu.FromBytes[float32](c.raw)
	for i, v := range fs {
		s := v * 255
		switch {
		case s <= 0:
			c.mirror[i] = 0
		case s >= 255:
			c.mirror[i] = 255
		default:
			c.mirror[i] = uint8(s + 0.5)
		}
	}
}

func (c *Converter) release() {
	if c.bindGroup != nil {
		c.bindGroup.Release()
		c.bindGroup = nil
	}
	c.boundSrc = nil
	if c.pipeline != nil {
		c.pipeline.Release()
		c.pipeline = nil
	}
	if c.sampler != nil {
		c.sampler.Release()
		c.sampler = nil
	}
	if c.surface != nil {
		c.surface.Release()
		c.surface = nil
	}
	for _, b := range []**wgpu.Buffer{&c.outBuf, &c.stagingBuf, &c.uniformBuf} {
		if *b != nil {
			(*b).Destroy()
			*b = nil
		}
	}
}
