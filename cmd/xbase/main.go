// Command xbase browses, views and edits tables kept in xbase storage and asks
// the AI assistant about them.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maruel/xbase/internal/cli"
	"github.com/maruel/xbase/internal/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelWarn)
	if v := os.Getenv("XBASE_LOG_LEVEL"); v != "" {
		if l, err := utils.ParseLevel(v); err == nil {
			ll.Set(l)
		}
	}
	slog.SetDefault(utils.NewLogger(os.Stderr, ll))
	code := cli.Run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:], os.Environ())
	stop()
	os.Exit(code)
}
