// Command dpchat is the operator CLI for the transcript service: it exports
// transcripts and feedback the way the chat page does, checks MongoDB, and
// issues admin tokens for the read routes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
