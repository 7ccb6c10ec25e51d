package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

func errInvalidFormat(sampleRate, channels int) error {
	return fmt.Errorf("audio: invalid format %d Hz x %d", sampleRate, channels)
}

// WAVSource replays a 16-bit PCM WAV file in real time, then keeps
// producing silence. Done is closed once the file has been played.
type WAVSource struct {
	path string

	pcm        []byte
	frameBytes int
	pacer      pacer

	doneOnce sync.Once
	done     chan struct{}
}

func NewWAVSource(path string) *WAVSource {
	return &WAVSource{path: path, done: make(chan struct{})}
}

func (w *WAVSource) Name() string { return "wav: " + w.path }

func (w *WAVSource) Done() <-chan struct{} { return w.done }

func (w *WAVSource) Initialize(sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return errInvalidFormat(sampleRate, channels)
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("reading wav: %w", err)
	}
	rate, ch, bits, err := parseWAVHeader(data)
	if err != nil {
		return fmt.Errorf("%s: %w", w.path, err)
	}
	if rate != sampleRate || ch != channels || bits != 16 {
		return fmt.Errorf("%s: file is %d Hz x %d @ %d bit, want %d Hz x %d @ 16 bit",
			w.path, rate, ch, bits, sampleRate, channels)
	}
	w.pcm = data[WAVHeaderSize:]
	w.frameBytes = FrameBytes(sampleRate, channels)
	return nil
}

func parseWAVHeader(data []byte) (sampleRate, channels, bits int, err error) {
	if len(data) < WAVHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, 0, 0, fmt.Errorf("not a RIFF/WAVE file")
	}
	if format := binary.LittleEndian.Uint16(data[20:22]); format != 1 {
		return 0, 0, 0, fmt.Errorf("unsupported wav encoding %d", format)
	}
	channels = int(binary.LittleEndian.Uint16(data[22:24]))
	sampleRate = int(binary.LittleEndian.Uint32(data[24:28]))
	bits = int(binary.LittleEndian.Uint16(data[34:36]))
	return sampleRate, channels, bits, nil
}

func (w *WAVSource) Start(onFrame FrameFunc) error {
	if w.frameBytes == 0 {
		return ErrNotInitialized
	}
	pos := 0
	w.pacer.start(func() []byte {
		frame := make([]byte, w.frameBytes)
		if pos < len(w.pcm) {
			pos += copy(frame, w.pcm[pos:])
		}
		if pos >= len(w.pcm) {
			w.doneOnce.Do(func() { close(w.done) })
		}
		return frame
	}, onFrame)
	return nil
}

func (w *WAVSource) Stop() { w.pacer.halt() }
