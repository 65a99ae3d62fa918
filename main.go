package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ryanmoran/disposable/internal"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic occurred: %v", r)
			os.Exit(1)
		}
	}()

	if err := run(os.Args, os.Environ()); err != nil {
		log.Fatal(err)
	}
}

func run(args, env []string) error {
	// Create context with cancellation so a signal stops blocking commands
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	cmd := newRootCommand(env, internal.NewStandardWriter())
	cmd.SetArgs(args[1:])

	if err := cmd.ExecuteContext(ctx); err != nil {
		return fmt.Errorf("disposable: %w", err)
	}

	return nil
}
