package cli

import (
	"context"
	"strings"

	"github.com/maruel/xbase/internal/models"
	"github.com/maruel/xbase/internal/render"
	"github.com/maruel/xbase/internal/session"
	flag "github.com/spf13/pflag"
)

func (a *app) cmdShow() *Command {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	raw := fs.Bool("raw", false, "Print the CSV text instead of a table")
	return &Command{
		Flags: fs,
		Usage: "show <locator>",
		Short: "Show a stored file as a table",
		Long: `Load a stored file through the storage proxy and print it.

The locator is a public object URL or a bucket-relative "<owner>/<file>" path.
CSV files are shown as a table and their columns are listed; any other file is
shown as a single "Content" cell.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := requireArgs(args, 1, "exactly one locator"); err != nil {
				return err
			}
			s, err := a.open(ctx, o, args[0])
			if err != nil {
				return err
			}
			st := s.State()
			if *raw {
				o.Println(st.Committed.String())
				return nil
			}
			o.Println(render.Contents(st.Committed))
			return nil
		},
	}
}

// open loads the file designated by loc into a new session, printing the
// published column list.
func (a *app) open(ctx context.Context, o *IO, loc string) (*session.Session, error) {
	f, err := fileRef(loc)
	if err != nil {
		return nil, err
	}
	s := session.New(a.proxy(ctx), session.Options{
		Bucket: a.cfg.Bucket,
		OnColumns: func(f models.FileRef, cols []string) {
			o.Printf("%s columns: %s\n", f.Name, strings.Join(cols, ", "))
		},
	})
	if _, err := s.Open(ctx, f); err != nil {
		return nil, err
	}
	return s, nil
}
