//go:build !linux

package main

import "runtime"

// Cocoa and Win32 UI calls must come from the thread that started the
// process; keep the main goroutine on it for the tray and the GUI.
func init() {
	runtime.LockOSThread()
}
