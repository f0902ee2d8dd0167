// Command processctl manages process definitions through the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/heartmarshall/qms-backend/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "processctl:", err)
		stop()
		os.Exit(1)
	}
}
