//go:build gui

package gui

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"straf/penalty"
)

const (
	bannerWidth  = 420
	bannerHeight = 110
)

// vignetteView is the banner: a vignette raster behind a row of stars and
// the penalty label.
type vignetteView struct {
	widget.BaseWidget

	mu       sync.Mutex
	severity int
	label    string
}

func newVignetteView() *vignetteView {
	v := &vignetteView{}
	v.ExtendBaseWidget(v)
	return v
}

// set stores the state; the caller refreshes on the UI goroutine.
func (v *vignetteView) set(severity int, label string) {
	v.mu.Lock()
	v.severity, v.label = severity, label
	v.mu.Unlock()
}

func (v *vignetteView) state() (int, string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.severity, v.label
}

func (v *vignetteView) MinSize() fyne.Size {
	return fyne.NewSize(bannerWidth, bannerHeight)
}

func (v *vignetteView) CreateRenderer() fyne.WidgetRenderer {
	r := &vignetteRenderer{view: v}
	r.raster = canvas.NewRasterWithPixels(func(x, y, w, h int) color.Color {
		sev, _ := v.state()
		return vignettePixel(sev, x, y, w, h)
	})
	for i := range r.stars {
		r.stars[i] = canvas.NewText("★", starInactive)
		r.stars[i].TextSize = 28
	}
	r.text = canvas.NewText("", textColor)
	r.text.TextSize = 18
	r.text.Alignment = fyne.TextAlignCenter
	r.text.TextStyle = fyne.TextStyle{Bold: true}
	return r
}

type vignetteRenderer struct {
	view   *vignetteView
	raster *canvas.Raster
	stars  [penalty.MaxSeverity]*canvas.Text
	text   *canvas.Text
}

func (r *vignetteRenderer) Layout(size fyne.Size) {
	r.raster.Resize(size)
	r.raster.Move(fyne.NewPos(0, 0))

	starW := r.stars[0].MinSize().Width + 6
	left := (size.Width - starW*penalty.MaxSeverity) / 2
	for i, s := range r.stars {
		s.Move(fyne.NewPos(left+float32(i)*starW, size.Height*0.12))
	}
	r.text.Resize(fyne.NewSize(size.Width, r.text.MinSize().Height))
	r.text.Move(fyne.NewPos(0, size.Height*0.58))
}

func (r *vignetteRenderer) MinSize() fyne.Size { return r.view.MinSize() }

func (r *vignetteRenderer) Refresh() {
	sev, label := r.view.state()
	for i, s := range r.stars {
		s.Color = starColor(i, sev)
		s.Refresh()
	}
	r.text.Text = label
	r.text.Refresh()
	r.raster.Refresh()
}

func (r *vignetteRenderer) Objects() []fyne.CanvasObject {
	objs := []fyne.CanvasObject{r.raster}
	for _, s := range r.stars {
		objs = append(objs, s)
	}
	return append(objs, r.text)
}

func (r *vignetteRenderer) Destroy() {}
