// Command importctl validates and imports loyalty member CSV files from the
// command line, using the same pipeline as the HTTP server.
//
// Usage:
//
//	importctl template > members.csv
//	importctl validate members.csv
//	importctl run --dry-run members.csv
//	importctl run --tier silver members.csv
//	importctl history --limit 10
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
