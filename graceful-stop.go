package main

import (
	"os"
	"os/signal"
	"syscall"
)

func gracefulStop(additional func()) {

	// Handle ^C and SIGTERM gracefully
	var gracefulStop = make(chan os.Signal, 1)
	signal.Notify(gracefulStop, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-gracefulStop
		logger.Debugf("Caught signal: %+v", sig)

		additional()
	}()
}
