package gpu

import (
	"fmt"
	"strings"
	"sync"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/openfluke/tapestry/detector"
)

// Context holds the single WebGPU context for the process. It is created
// lazily on first use and is read-only afterwards, so it is safe to share
// across converters and goroutines.
type Context struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue

	// Report is the capability probe taken before device creation. May be
	// nil when probing failed but a device could still be created.
	Report *detector.Report

	once sync.Once
}

var ctx Context

// GetContext returns the singleton GPU context, initializing it on the
// first call. Initialization prefers a high-performance adapter, dropping
// to low power for integrated GPUs and to the runtime default as a last
// resort.
func GetContext() (*Context, error) {
	var initErr error
	ctx.once.Do(func() {
		rep, err := detector.Detect()
		if err != nil {
			slogger().Debug("adapter probe failed", "err", err)
		}
		ctx.Report = rep

		ctx.Instance = wgpu.CreateInstance(nil)
		if ctx.Instance == nil {
			initErr = fmt.Errorf("gpu: failed to create WebGPU instance")
			return
		}

		pp := wgpu.PowerPreferenceHighPerformance
		if rep != nil && strings.Contains(strings.ToLower(rep.AdapterType), "integrated") {
			pp = wgpu.PowerPreferenceLowPower
		}

		ctx.Adapter, err = ctx.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			PowerPreference: pp,
		})
		if err != nil || ctx.Adapter == nil {
			slogger().Debug("preferred adapter failed, trying default", "err", err)
			ctx.Adapter, err = ctx.Instance.RequestAdapter(nil)
		}
		if ctx.Adapter == nil {
			initErr = fmt.Errorf("gpu: all adapter attempts failed: %v", err)
			return
		}

		info := ctx.Adapter.GetInfo()
		slogger().Info("using GPU adapter", "name", info.Name, "vendor", info.VendorName)

		ctx.Device, err = ctx.Adapter.RequestDevice(nil)
		if err != nil {
			initErr = fmt.Errorf("gpu: request device: %w", err)
			return
		}

		ctx.Queue = ctx.Device.GetQueue()
	})

	if initErr != nil {
		return nil, initErr
	}
	if ctx.Device == nil || ctx.Queue == nil {
		return nil, fmt.Errorf("gpu: WebGPU device or queue not initialized")
	}

	return &ctx, nil
}

// EnsureGPU ensures the GPU context is initialized.
func EnsureGPU() error {
	_, err := GetContext()
	return err
}
