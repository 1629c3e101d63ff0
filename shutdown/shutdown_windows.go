//go:build windows

package shutdown

import (
	"os"
	"os/signal"
)

// Signals returns a channel that receives the process termination
// signals relevant on this platform.
func Signals() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return ch
}
