package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"runtime"
	"sync"

	"straf/penalty"
)

const iconSize = 44

// severityColors runs from idle grey through yellow to red.
var severityColors = [penalty.MaxSeverity + 1]color.RGBA{
	{R: 142, G: 142, B: 147, A: 255},
	{R: 255, G: 214, B: 10, A: 255},
	{R: 255, G: 176, B: 0, A: 255},
	{R: 255, G: 132, B: 0, A: 255},
	{R: 255, G: 69, B: 58, A: 255},
	{R: 200, G: 0, B: 0, A: 255},
}

var (
	iconOnce sync.Once
	icons    [penalty.MaxSeverity + 1][]byte
)

// Icon returns the tray icon for severity, PNG encoded, wrapped in an ICO
// container on windows.
func Icon(severity int) []byte {
	iconOnce.Do(func() {
		for sev := range icons {
			data := renderIcon(iconSize, sev)
			if runtime.GOOS == "windows" {
				data = wrapICO(data, iconSize)
			}
			icons[sev] = data
		}
	})
	return icons[min(max(severity, 0), penalty.MaxSeverity)]
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("encodePNG: " + err.Error())
	}
	return buf.Bytes()
}

// renderIcon draws a filled dot in the severity colour inside a dark ring.
// The dot grows with severity.
func renderIcon(size, severity int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cx, cy := float64(size)/2, float64(size)/2
	r := float64(size)/2 - 1
	dotR := r * (0.35 + 0.1*float64(severity))
	dot := severityColors[severity]
	for y := range size {
		for x := range size {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			if d <= min(dotR, r-2) {
				img.Set(x, y, dot)
			} else if d <= r {
				img.Set(x, y, color.Black)
			}
		}
	}
	return encodePNG(img)
}

// wrapICO embeds a PNG in a single-image ICO file.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	w := func(v any) { binary.Write(&buf, binary.LittleEndian, v) }
	w(uint16(0)) // reserved
	w(uint16(1)) // type: icon
	w(uint16(1)) // count
	buf.WriteByte(byte(size))
	buf.WriteByte(byte(size))
	buf.WriteByte(0) // palette
	buf.WriteByte(0)
	w(uint16(1))  // planes
	w(uint16(32)) // bpp
	w(uint32(len(pngData)))
	w(uint32(6 + 16))
	buf.Write(pngData)
	return buf.Bytes()
}

// PNG returns the severity icon as plain PNG, for toolkits that convert
// icons themselves.
func PNG(severity int) []byte {
	return renderIcon(iconSize, min(max(severity, 0), penalty.MaxSeverity))
}
