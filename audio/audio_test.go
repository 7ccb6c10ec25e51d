package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeCapture struct {
	mu      sync.Mutex
	cb      DataCallback
	stopCh  chan struct{}
	done    chan struct{}
	stopped bool
	closed  bool
}

func (f *fakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *fakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *fakeCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.done = make(chan struct{})
	go func() {
		defer close(f.done)
		frame := make([]byte, 640)
		for {
			select {
			case <-f.stopCh:
				return
			case <-time.After(time.Millisecond):
			}
			f.mu.Lock()
			cb := f.cb
			f.mu.Unlock()
			if cb != nil {
				cb(frame, 320)
			}
		}
	}()
	return nil
}

func (f *fakeCapture) Stop() {
	if f.stopCh != nil && !f.stopped {
		close(f.stopCh)
		<-f.done
		f.stopped = true
	}
}

func (f *fakeCapture) Close() { f.closed = true }

type fakeContext struct {
	devices []DeviceInfo
	capture *fakeCapture
	got     *DeviceInfo
	closed  bool
}

func (f *fakeContext) Devices() ([]DeviceInfo, error) { return f.devices, nil }
func (f *fakeContext) Close()                         { f.closed = true }

func (f *fakeContext) NewCapture(dev *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	f.got = dev
	f.capture = &fakeCapture{}
	return f.capture, nil
}

func newFakeDeviceSource(name string, ctx *fakeContext) *DeviceSource {
	d := NewDeviceSource(name)
	d.newContext = func() (Context, error) { return ctx, nil }
	return d
}

func TestDeviceSourceUnknownDevice(t *testing.T) {
	ctx := &fakeContext{devices: []DeviceInfo{{ID: "1", Name: "Built-in"}}}
	d := newFakeDeviceSource("USB Mic", ctx)

	if err := d.Initialize(16000, 1); err == nil {
		t.Fatal("expected error for unknown device")
	}
	if !ctx.closed {
		t.Error("context not closed after failed Initialize")
	}
}

func TestDeviceSourceSelectsByName(t *testing.T) {
	ctx := &fakeContext{devices: []DeviceInfo{{ID: "1", Name: "Built-in"}, {ID: "2", Name: "USB Mic"}}}
	d := newFakeDeviceSource("USB Mic", ctx)

	if err := d.Initialize(16000, 1); err != nil {
		t.Fatal(err)
	}
	if ctx.got == nil || ctx.got.ID != "2" {
		t.Errorf("capture opened on %+v, want ID 2", ctx.got)
	}
	if d.Name() != "mic: USB Mic" {
		t.Errorf("Name() = %q", d.Name())
	}
}

func TestDeviceSourceStartBeforeInitialize(t *testing.T) {
	d := NewDeviceSource("")
	if err := d.Start(func([]byte) {}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Start err = %v, want ErrNotInitialized", err)
	}
}

func TestDeviceSourceStopJoins(t *testing.T) {
	ctx := &fakeContext{}
	d := newFakeDeviceSource("", ctx)
	if err := d.Initialize(16000, 1); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	frames := 0
	got := make(chan struct{}, 1)
	err := d.Start(func(pcm []byte) {
		mu.Lock()
		frames++
		mu.Unlock()
		select {
		case got <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("no frames delivered")
	}

	d.Stop()
	mu.Lock()
	after := frames
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if frames != after {
		t.Errorf("frames delivered after Stop: %d -> %d", after, frames)
	}
	if !ctx.capture.closed || !ctx.closed {
		t.Error("capture or context not closed")
	}
}

func TestSilentSourceFrames(t *testing.T) {
	s := NewSilentSource()
	if err := s.Initialize(16000, 1); err != nil {
		t.Fatal(err)
	}

	frames := make(chan []byte, 16)
	if err := s.Start(func(pcm []byte) {
		select {
		case frames <- pcm:
		default:
		}
	}); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	select {
	case f := <-frames:
		if len(f) != 640 {
			t.Errorf("frame size = %d, want 640", len(f))
		}
		for _, b := range f {
			if b != 0 {
				t.Fatal("silent frame has non-zero sample")
			}
		}
	case <-time.After(time.Second):
		t.Fatal("no frame within 1s")
	}
}

func TestSilentSourceRejectsBadFormat(t *testing.T) {
	s := NewSilentSource()
	if err := s.Initialize(0, 1); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if err := s.Start(func([]byte) {}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Start err = %v", err)
	}
}

func TestStopIdempotent(t *testing.T) {
	s := NewSilentSource()
	if err := s.Initialize(16000, 1); err != nil {
		t.Fatal(err)
	}
	s.Stop()
	if err := s.Start(func([]byte) {}); err != nil {
		t.Fatal(err)
	}
	s.Stop()
	s.Stop()
}

func writeWAV(t *testing.T, sampleRate, channels int, pcm []byte) string {
	t.Helper()
	buf := make([]byte, WAVHeaderSize+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(WAVHeaderSize-8+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)

	path := filepath.Join(t.TempDir(), "in.wav")
	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWAVSourceReplaysThenSilence(t *testing.T) {
	pcm := make([]byte, 1000)
	for i := range pcm {
		pcm[i] = 0x7f
	}
	w := NewWAVSource(writeWAV(t, 16000, 1, pcm))
	if err := w.Initialize(16000, 1); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got []byte
	if err := w.Start(func(f []byte) {
		mu.Lock()
		got = append(got, f...)
		mu.Unlock()
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("wav playback did not finish")
	}
	time.Sleep(50 * time.Millisecond)
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(got) < 1280 {
		t.Fatalf("got %d bytes, want at least two frames", len(got))
	}
	for i := 0; i < 1000; i++ {
		if got[i] != 0x7f {
			t.Fatalf("byte %d = %#x, want file content", i, got[i])
		}
	}
	if got[1000] != 0 {
		t.Error("expected zero padding after file content")
	}
}

func TestWAVSourceFormatMismatch(t *testing.T) {
	w := NewWAVSource(writeWAV(t, 44100, 2, make([]byte, 64)))
	if err := w.Initialize(16000, 1); err == nil {
		t.Error("expected format mismatch error")
	}
}

func TestWAVSourceNotWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, make([]byte, 100), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewWAVSource(path).Initialize(16000, 1); err == nil {
		t.Error("expected error for non-RIFF file")
	}
}

func TestNewSource(t *testing.T) {
	for _, kind := range []string{"", KindDevice, KindSilent} {
		if _, err := NewSource(kind, "", ""); err != nil {
			t.Errorf("NewSource(%q): %v", kind, err)
		}
	}
	if _, err := NewSource(KindWAV, "", ""); err == nil {
		t.Error("wav without path should fail")
	}
	if _, err := NewSource("tape", "", ""); err == nil {
		t.Error("unknown kind should fail")
	}
}

func TestIsBluetooth(t *testing.T) {
	if !IsBluetooth("AirPods Pro") || IsBluetooth("Built-in Microphone") {
		t.Error("IsBluetooth misclassified")
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Error("empty input should be 0")
	}
	pcm := make([]byte, 4)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(int16(1000)))
	v := int16(-1000)
	binary.LittleEndian.PutUint16(pcm[2:], uint16(v))
	if got := RMS(pcm); math.Abs(got-1000) > 0.001 {
		t.Errorf("RMS = %v, want 1000", got)
	}
}
