package audio

import (
	"encoding/binary"
	"math"
	"strings"
)

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	BytesPerSample    = 2 // 16-bit little-endian PCM

	FrameMs = 20

	WAVHeaderSize = 44

	// captureGain boosts quiet laptop microphones before recognition.
	captureGain = 4
)

// FrameBytes is the size of one FrameMs frame at the given format.
func FrameBytes(sampleRate, channels int) int {
	return sampleRate * channels * BytesPerSample * FrameMs / 1000
}

// RMS is the root mean square level of 16-bit little-endian PCM.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"jabra", "galaxy buds", "pixel buds",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether it is a Bluetooth
// headset, which usually means a narrowband microphone profile.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// Context enumerates devices and opens captures on the platform backend.
type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// FrameFunc receives 16-bit little-endian PCM. The slice is owned by the
// callee.
type FrameFunc func(pcm []byte)

// Source produces audio frames on its own goroutine.
type Source interface {
	Name() string
	Initialize(sampleRate, channels int) error
	Start(onFrame FrameFunc) error
	// Stop blocks until no further frames will be delivered.
	Stop()
}
