package main

import (
	"os"
	"os/signal"
	"sync"
)

var (
	interruptHandlersOnce sync.Once
	interruptHandlers     []func()
)

// addInterruptHandler adds a handler to call when a SIGINT (Ctrl+C) is
// received. Handlers run in reverse order of registration, and the
// shutdown channel is closed only once every handler has returned.
func addInterruptHandler(handler func()) {
	interruptHandlers = append(interruptHandlers, handler)

	interruptHandlersOnce.Do(func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt)

		go func() {
			<-sigChan
			for i := len(interruptHandlers) - 1; i >= 0; i-- {
				interruptHandlers[i]()
			}
			close(shutdownChannel)
		}()
	})
}
