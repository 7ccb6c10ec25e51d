//go:build notray

package tray

// Run starts onReady and blocks until Quit.
func Run(onReady func()) {
	go onReady()
	<-quitCh
}

func render(int, string) {}
func quitLoop()          {}
