//go:build !linux

package audio

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo: %w", err)
	}
	return &malgoContext{ctx: ctx}, nil
}

// Devices lists capture devices with the system default first.
func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	devices := make([]DeviceInfo, 0, len(infos))
	for _, info := range infos {
		d := DeviceInfo{ID: hex.EncodeToString(info.ID[:]), Name: info.Name()}
		if info.IsDefault != 0 {
			devices = append([]DeviceInfo{d}, devices...)
		} else {
			devices = append(devices, d)
		}
	}
	return devices, nil
}

func deviceID(hexID string) (*malgo.DeviceID, error) {
	raw, err := hex.DecodeString(hexID)
	if err != nil {
		return nil, fmt.Errorf("invalid device ID %q: %w", hexID, err)
	}
	var id malgo.DeviceID
	if len(raw) != len(id) {
		return nil, fmt.Errorf("invalid device ID %q: %d bytes", hexID, len(raw))
	}
	copy(id[:], raw)
	return &id, nil
}

func (m *malgoContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = config.Channels
	cfg.SampleRate = config.SampleRate
	cfg.PeriodSizeInMilliseconds = FrameMs
	if device != nil {
		id, err := deviceID(device.ID)
		if err != nil {
			return nil, err
		}
		cfg.Capture.DeviceID = id.Pointer()
	}

	c := &malgoCapture{}
	dev, err := malgo.InitDevice(m.ctx.Context, cfg, malgo.DeviceCallbacks{Data: c.deliver})
	if err != nil {
		return nil, fmt.Errorf("malgo init device: %w", err)
	}
	c.device = dev
	return c, nil
}

func (m *malgoContext) Close() {
	m.ctx.Uninit()
	m.ctx.Free()
}

type malgoCapture struct {
	device   *malgo.Device
	callback atomic.Pointer[DataCallback]
	samples  []int16

	mu     sync.Mutex
	closed bool
}

// deliver runs on the backend thread. The input buffer is reused by malgo,
// so it is converted into a fresh slice before the callback sees it.
func (c *malgoCapture) deliver(_, input []byte, frameCount uint32) {
	cb := c.callback.Load()
	if cb == nil {
		return
	}
	n := len(input) / BytesPerSample
	if cap(c.samples) < n {
		c.samples = make([]int16, n)
	}
	s := c.samples[:n]
	for i := range s {
		s[i] = int16(binary.LittleEndian.Uint16(input[i*2:]))
	}
	(*cb)(pcm16(s, captureGain), frameCount)
}

func (c *malgoCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("malgo: capture closed")
	}
	return c.device.Start()
}

// Stop returns after the backend has delivered its last callback.
func (c *malgoCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.device.Stop()
	}
}

func (c *malgoCapture) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.device.Uninit()
		c.closed = true
	}
}

func (c *malgoCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *malgoCapture) ClearCallback() {
	c.callback.Store(nil)
}
