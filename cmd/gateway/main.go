package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/app"
)

const shutdownTimeout = 10 * time.Second

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("gateway: init: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- a.Start() }()

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Println("gateway: stopping capture and draining sessions")
	case err := <-serveErr:
		if err != nil {
			log.Printf("gateway: serve: %v", err)
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.Printf("gateway: shutdown: %v", err)
		exitCode = 1
	}
	if exitCode != 0 {
		cancel()
		os.Exit(exitCode)
	}
	log.Println("gateway: stopped")
}
