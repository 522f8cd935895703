// Command lireddit runs the lireddit GraphQL server.
//
//	lireddit [serve]   start the HTTP server (default)
//	lireddit migrate   apply the Postgres schema
//
// Configuration comes from the environment, optionally seeded from dotenv
// files given with --env-file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "lireddit:", err)
		os.Exit(1)
	}
}
