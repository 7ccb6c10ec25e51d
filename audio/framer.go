package audio

import "encoding/binary"

// framer cuts a capture stream, delivered in whatever chunk sizes the
// backend likes, into frames of exactly size bytes.
type framer struct {
	size int
	buf  []byte
	emit FrameFunc
}

func newFramer(size int, emit FrameFunc) *framer {
	return &framer{size: size, buf: make([]byte, 0, 2*size), emit: emit}
}

func (f *framer) write(data []byte) {
	f.buf = append(f.buf, data...)
	n := 0
	for len(f.buf)-n >= f.size {
		frame := make([]byte, f.size)
		copy(frame, f.buf[n:])
		f.emit(frame)
		n += f.size
	}
	f.buf = append(f.buf[:0], f.buf[n:]...)
}

// pcm16 encodes samples as little-endian PCM, multiplying by gain with
// saturation.
func pcm16(samples []int16, gain int32) []byte {
	data := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		v := min(max(int32(s)*gain, -32768), 32767)
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(v)))
	}
	return data
}
