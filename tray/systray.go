//go:build !notray

package tray

import (
	"fyne.io/systray"
)

var ready = make(chan struct{})

// Run shows the tray icon and blocks until Quit. It must be called on the
// main goroutine. onReady runs on its own goroutine once the icon is up.
func Run(onReady func()) {
	systray.Run(func() {
		systray.SetIcon(Icon(0))
		systray.SetTitle("")
		systray.SetTooltip(appName + " – listening")

		mStatus := systray.AddMenuItem(appName, "")
		mStatus.Disable()
		systray.AddSeparator()
		mPause := systray.AddMenuItemCheckbox("Pause listening", "Stop sending audio to the recognizer", false)
		mQuit := systray.AddMenuItem("Quit", "Quit "+appName)

		statusItem = mStatus
		close(ready)

		go func() {
			for {
				select {
				case <-mPause.ClickedCh:
					if togglePause() {
						mPause.Check()
					} else {
						mPause.Uncheck()
					}
				case <-mQuit.ClickedCh:
					Quit()
					return
				case <-quitCh:
					return
				}
			}
		}()
		go onReady()
	}, nil)
}

var statusItem *systray.MenuItem

func render(severity int, tip string) {
	select {
	case <-ready:
	default:
		return
	}
	systray.SetIcon(Icon(severity))
	systray.SetTooltip(tip)
	statusItem.SetTitle(tip)
}

func quitLoop() {
	select {
	case <-ready:
		systray.Quit()
	default:
	}
}
