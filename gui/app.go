//go:build gui

// Package gui shows penalties in a floating fyne banner with a vignette
// that darkens as stars accumulate.
package gui

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/driver/desktop"
	"github.com/go-gl/glfw/v3.3/glfw"

	"straf/overlay"
	"straf/tray"
)

// App is a fyne application and an overlay.Overlay. Run must own the main
// goroutine; the sink methods may be called from anywhere.
type App struct {
	fyneApp fyne.App
	window  fyne.Window
	view    *vignetteView
	onReady func()
	onPause func(bool)

	posX int
	posY int

	stopped atomic.Bool

	mu       sync.Mutex
	status   overlay.Status
	paused   bool
	menu     *fyne.Menu
	pauseItm *fyne.MenuItem
}

func NewApp(onReady func(), onPause func(paused bool)) *App {
	return &App{onReady: onReady, onPause: onPause}
}

func Run(a *App) error {
	a.fyneApp = app.NewWithID("io.straf.gui")
	a.fyneApp.Settings().SetTheme(newBannerTheme())

	if desk, ok := a.fyneApp.(desktop.App); ok {
		a.pauseItm = fyne.NewMenuItem("Pause listening", a.togglePause)
		a.menu = fyne.NewMenu("straf",
			a.pauseItm,
			fyne.NewMenuItemSeparator(),
			fyne.NewMenuItem("Quit", func() {
				a.fyneApp.Quit()
			}),
		)
		desk.SetSystemTrayMenu(a.menu)
		desk.SetSystemTrayIcon(trayIcon(0))
	}

	var screenW int
	if monitor := glfw.GetPrimaryMonitor(); monitor != nil {
		_, _, screenW, _ = monitor.GetWorkarea()
	} else {
		screenW = 1920
	}

	if drv, ok := a.fyneApp.Driver().(desktop.Driver); ok {
		a.window = drv.CreateSplashWindow()
	} else {
		a.window = a.fyneApp.NewWindow("straf")
	}

	a.view = newVignetteView()
	a.window.SetContent(a.view)
	a.window.SetFixedSize(true)
	a.window.SetPadded(false)
	size := a.view.MinSize()
	a.window.Resize(size)

	// Top centre, clear of the menu bar.
	a.posX = (screenW - int(size.Width)) / 2
	a.posY = 40

	go a.onReady()

	// The window stays hidden until the first penalty.
	a.fyneApp.Run()
	a.stopped.Store(true)
	return nil
}

func (a *App) togglePause() {
	a.mu.Lock()
	a.paused = !a.paused
	p := a.paused
	a.mu.Unlock()

	a.pauseItm.Checked = p
	a.menu.Refresh()
	if a.onPause != nil {
		a.onPause(p)
	}
}

func (a *App) Quit() {
	if a.fyneApp != nil && !a.stopped.Load() {
		fyne.Do(a.fyneApp.Quit)
	}
}

func (a *App) Init() error { return nil }
func (a *App) Close()      { a.Quit() }

func (a *App) ShowPenalty(label string) {
	a.mu.Lock()
	a.status.Show(label, time.Now())
	st := a.status
	a.mu.Unlock()
	a.render(st)
}

func (a *App) UpdateStatus(severity int, label string) {
	a.mu.Lock()
	a.status.Update(severity, label)
	st := a.status
	a.mu.Unlock()
	a.render(st)
}

func (a *App) Hide() {
	a.mu.Lock()
	a.status.Hide()
	a.mu.Unlock()
	a.render(overlay.Status{})
}

func (a *App) render(st overlay.Status) {
	if a.view == nil || a.stopped.Load() {
		return
	}
	a.view.set(st.Severity, st.Label)
	fyne.Do(func() {
		if desk, ok := a.fyneApp.(desktop.App); ok {
			desk.SetSystemTrayIcon(trayIcon(st.Severity))
		}
		a.view.Refresh()
		if st.Severity == 0 {
			a.window.Hide()
			return
		}
		if glfwWin := glfw.GetCurrentContext(); glfwWin != nil {
			glfwWin.SetPos(a.posX, a.posY)
			glfwWin.SetAttrib(glfw.FocusOnShow, glfw.False)
			glfwWin.SetAttrib(glfw.Floating, glfw.True)
			glfwWin.Show()
			return
		}
		a.window.Show()
	})
}

func trayIcon(severity int) fyne.Resource {
	return fyne.NewStaticResource(fmt.Sprintf("tray-%d.png", severity), tray.PNG(severity))
}
