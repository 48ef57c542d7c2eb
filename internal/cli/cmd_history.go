package cli

import (
	"context"

	"github.com/maruel/xbase/internal/render"
	flag "github.com/spf13/pflag"
)

func (a *app) cmdHistory() *Command {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "Maximum revisions to show")
	return &Command{
		Flags: fs,
		Usage: "history <locator>",
		Short: "List the stored revisions of a file",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := requireArgs(args, 1, "exactly one locator"); err != nil {
				return err
			}
			h, err := a.proxy(ctx).History(ctx, args[0], *limit)
			if err != nil {
				return err
			}
			if len(h.Revisions) == 0 {
				o.Println("no revisions")
				return nil
			}
			o.Println(render.Revisions(h.Revisions))
			return nil
		},
	}
}
