//go:build !gui

package main

import (
	"errors"
	"fmt"
	"os"

	"straf/overlay"
)

var errNoGUI = errors.New("built without GUI support (rebuild with -tags gui)")

func runGUI(func() int) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", errNoGUI)
	return 1
}

func newGUISink() (overlay.Overlay, error) {
	return nil, errNoGUI
}
