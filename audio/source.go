package audio

import (
	"errors"
	"fmt"
	"sync"

	"straf/log"
)

// Source kinds accepted by NewSource.
const (
	KindDevice = "device"
	KindSilent = "silent"
	KindWAV    = "wav"
)

var ErrNotInitialized = errors.New("audio: source not initialized")

// NewSource returns the source for kind. device selects a capture device by
// name and wavPath is read by the wav source.
func NewSource(kind, device, wavPath string) (Source, error) {
	switch kind {
	case "", KindDevice:
		return NewDeviceSource(device), nil
	case KindSilent:
		return NewSilentSource(), nil
	case KindWAV:
		if wavPath == "" {
			return nil, fmt.Errorf("audio: wav source needs a file path")
		}
		return NewWAVSource(wavPath), nil
	}
	return nil, fmt.Errorf("audio: unknown source %q", kind)
}

// DeviceSource captures from a microphone through the platform Context and
// delivers FrameMs frames.
type DeviceSource struct {
	deviceName string
	newContext func() (Context, error)

	mu      sync.Mutex
	ctx     Context
	capture CaptureDevice
	device  *DeviceInfo
	frame   int
	running bool
}

func NewDeviceSource(deviceName string) *DeviceSource {
	return &DeviceSource{deviceName: deviceName, newContext: NewContext}
}

func (d *DeviceSource) Name() string {
	if d.device != nil {
		return "mic: " + d.device.Name
	}
	return "mic: system default"
}

func (d *DeviceSource) Initialize(sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return errInvalidFormat(sampleRate, channels)
	}

	ctx, err := d.newContext()
	if err != nil {
		return fmt.Errorf("audio context: %w", err)
	}

	var dev *DeviceInfo
	if d.deviceName != "" {
		dev, err = findDevice(ctx, d.deviceName)
		if err != nil {
			ctx.Close()
			return err
		}
		if IsBluetooth(dev.Name) {
			log.Warnf("audio: %q looks like a Bluetooth headset, recognition may suffer", dev.Name)
		}
	}

	capture, err := ctx.NewCapture(dev, CaptureConfig{
		SampleRate: uint32(sampleRate),
		Channels:   uint32(channels),
	})
	if err != nil {
		ctx.Close()
		return fmt.Errorf("capture device: %w", err)
	}

	d.mu.Lock()
	d.ctx, d.capture, d.device = ctx, capture, dev
	d.frame = FrameBytes(sampleRate, channels)
	d.mu.Unlock()
	return nil
}

func findDevice(ctx Context, name string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("audio: no capture device named %q", name)
}

func (d *DeviceSource) Start(onFrame FrameFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capture == nil {
		return ErrNotInitialized
	}
	if d.running {
		return nil
	}
	fr := newFramer(d.frame, onFrame)
	d.capture.SetCallback(func(data []byte, _ uint32) { fr.write(data) })
	if err := d.capture.Start(); err != nil {
		d.capture.ClearCallback()
		return fmt.Errorf("capture start: %w", err)
	}
	d.running = true
	log.Infof("audio: capturing from %s", d.Name())
	return nil
}

// Stop halts capture and releases the device. The source cannot be
// restarted without another Initialize.
func (d *DeviceSource) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capture != nil {
		d.capture.Stop()
		d.capture.ClearCallback()
		d.capture.Close()
		d.capture = nil
	}
	if d.ctx != nil {
		d.ctx.Close()
		d.ctx = nil
	}
	d.running = false
}
