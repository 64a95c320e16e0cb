package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli := NewCLI(os.Stdout, os.Stderr)
	if err := cli.Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var coded *ExitCodeError
	if errors.As(err, &coded) && coded.Code != 0 {
		return coded.Code
	}
	return 1
}
