package gpu

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"
)

// readStagingBytes blocks until buf (a MapRead staging buffer) is mapped,
// then copies its contents into dst. The wait has no timeout: a hung device
// blocks the caller indefinitely.
func readStagingBytes(c *Context, buf *wgpu.Buffer, dst []byte) error {
	done := make(chan struct{})
	var mapErr error

	err := buf.MapAsync(wgpu.MapModeRead, 0, buf.GetSize(), func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("map status: %d", status)
		}
		close(done)
	})
	if err != nil {
		return fmt.Errorf("gpu: MapAsync: %w", err)
	}

Loop:
	for {
		c.Device.Poll(true, nil)
		select {
		case <-done:
			break Loop
		default:
		}
	}

	if mapErr != nil {
		return mapErr
	}

	data := buf.GetMappedRange(0, uint(buf.GetSize()))
	if data == nil {
		buf.Unmap()
		return fmt.Errorf("gpu: mapped range nil")
	}
	copy(dst, data)
	buf.Unmap()

	return nil
}
