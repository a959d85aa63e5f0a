package main

import (
	"os"
	"os/signal"
)

var (
	// interruptChannel receives the shutdown signals.
	interruptChannel chan os.Signal

	addHandlerChannel = make(chan func())

	// interruptHandlersDone is closed once the handlers of the first
	// signal have run.
	interruptHandlersDone = make(chan struct{})
)

var signals = []os.Signal{os.Interrupt}

// mainInterruptHandler runs the registered handlers, newest first, on the
// first signal. Later signals are logged and otherwise ignored.
func mainInterruptHandler() {
	var handlers []func()
	shutdown := func() {
		for i := len(handlers) - 1; i >= 0; i-- {
			handlers[i]()
		}
		close(interruptHandlersDone)
	}

	for {
		select {
		case sig := <-interruptChannel:
			select {
			case <-interruptHandlersDone:
				log.Infof("Received signal (%s), already shutting "+
					"down", sig)
				continue
			default:
			}
			log.Infof("Received signal (%s). Shutting down...", sig)
			shutdown()

		case handler := <-addHandlerChannel:
			// Handlers registered after shutdown run immediately.
			select {
			case <-interruptHandlersDone:
				handler()
			default:
				handlers = append(handlers, handler)
			}
		}
	}
}

// addInterruptHandler registers a handler run on SIGINT or SIGTERM. The
// signal listener is started by the first call.
func addInterruptHandler(handler func()) {
	if interruptChannel == nil {
		interruptChannel = make(chan os.Signal, 1)
		signal.Notify(interruptChannel, signals...)
		go mainInterruptHandler()
	}

	addHandlerChannel <- handler
}
