package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"
)

func (a *app) cmdUpload() *Command {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	name := fs.String("name", "", "Stored file name (default: base name of path)")
	return &Command{
		Flags: fs,
		Usage: "upload <path>",
		Short: "Upload a local file",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := requireArgs(args, 1, "exactly one path"); err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			n := *name
			if n == "" {
				n = filepath.Base(args[0])
			}
			resp, err := a.proxy(ctx).Upload(ctx, n, f)
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}
			o.Println(resp.Path)
			o.Println(resp.URL)
			return nil
		},
	}
}
