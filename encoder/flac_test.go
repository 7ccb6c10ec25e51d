package encoder

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"
	"time"

	"github.com/mewkiz/flac"
)

func tone(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return samples
}

func toPCM(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

// decode returns the samples of every channel, interleaved again.
func decode(t *testing.T, data []byte) ([]int16, int) {
	t.Helper()
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("flac.New: %v", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	var out []int16
	for {
		f, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ParseNext: %v", err)
		}
		for i := 0; i < int(f.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				out = append(out, int16(f.Subframes[ch].Samples[i]))
			}
		}
	}
	return out, channels
}

func TestFLACRoundTrip(t *testing.T) {
	samples := tone(BlockSize*2 + 100)
	u, err := FLAC(toPCM(samples), 16000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if string(u.Data[:4]) != "fLaC" {
		t.Fatal("missing FLAC magic")
	}
	if u.Samples != len(samples) {
		t.Errorf("Samples = %d, want %d", u.Samples, len(samples))
	}
	if u.RawBytes != len(samples)*2 {
		t.Errorf("RawBytes = %d", u.RawBytes)
	}
	if r := u.Ratio(); r <= 0 || r >= 1 {
		t.Errorf("a pure tone should compress, ratio %.2f", r)
	}

	got, channels := decode(t, u.Data)
	if channels != 1 {
		t.Errorf("channels = %d", channels)
	}
	if len(got) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestFLACStereo(t *testing.T) {
	left := tone(1000)
	interleaved := make([]int16, 0, 2*len(left))
	for _, s := range left {
		interleaved = append(interleaved, s, -s/2)
	}
	u, err := FLAC(toPCM(interleaved), 16000, 2)
	if err != nil {
		t.Fatal(err)
	}
	if u.Samples != 1000 {
		t.Errorf("Samples = %d, want 1000 per channel", u.Samples)
	}

	got, channels := decode(t, u.Data)
	if channels != 2 || len(got) != len(interleaved) {
		t.Fatalf("decoded %d samples on %d channels", len(got), channels)
	}
	for i := range interleaved {
		if got[i] != interleaved[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], interleaved[i])
		}
	}
}

func TestFLACDuration(t *testing.T) {
	u, err := FLAC(toPCM(tone(8000)), 16000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if u.Duration != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", u.Duration)
	}
}

func TestFLACRejectsBadFormat(t *testing.T) {
	if _, err := FLAC(nil, 0, 1); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := FLAC(nil, 16000, 6); err == nil {
		t.Error("expected error for six channels")
	}
}

func TestSamples(t *testing.T) {
	got := Samples([]byte{0x01, 0x00, 0xff, 0xff, 0x7f})
	if len(got) != 2 || got[0] != 1 || got[1] != -1 {
		t.Errorf("Samples = %v, want [1 -1]", got)
	}
}

func TestDeinterleave(t *testing.T) {
	got := deinterleave([]int16{1, 2, 3, 4, 5}, 2)
	if len(got) != 2 || len(got[0]) != 2 {
		t.Fatalf("got %v", got)
	}
	if got[0][0] != 1 || got[0][1] != 3 || got[1][0] != 2 || got[1][1] != 4 {
		t.Errorf("got %v", got)
	}
}
