//go:build gui

package main

import (
	"errors"

	"straf/gui"
	"straf/log"
	"straf/overlay"
)

var guiApp *gui.App

// runGUI gives the main goroutine to fyne and runs serve beside it. Closing
// the app from its tray menu ends the session.
func runGUI(serve func() int) int {
	result := make(chan int, 1)
	guiApp = gui.NewApp(func() {
		result <- serve()
		guiApp.Quit()
	}, setPaused)
	if err := gui.Run(guiApp); err != nil {
		log.Errorf("gui: %v", err)
		requestQuit()
		return 1
	}
	requestQuit()
	return <-result
}

func newGUISink() (overlay.Overlay, error) {
	if guiApp == nil {
		return nil, errors.New("the gui sink needs the -gui flag")
	}
	return guiApp, nil
}
