package cli

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/maruel/xbase/internal/directory"
	"github.com/maruel/xbase/internal/render"
	flag "github.com/spf13/pflag"
)

func (a *app) cmdLs() *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	path := fs.String("path", "", "Descend through slash separated folder names, e.g. \"Reports/2024\"")
	match := fs.String("match", "", "Only show items whose name matches the glob `pattern` (e.g. \"*.csv\")")
	return &Command{
		Flags: fs,
		Usage: "ls [folder-id] [--path <a/b>] [--match <glob>]",
		Short: "List the folders and files of a folder",
		Long: `List the folders and files of a folder, the root folder by default.

The root folder is root_id when configured, else resolved from user_id.
--path walks down from there by folder name.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("expected at most one folder id")
			}
			if *match != "" && !doublestar.ValidatePattern(*match) {
				return fmt.Errorf("invalid glob %q", *match)
			}
			api, err := a.backend(ctx)
			if err != nil {
				return err
			}
			dir := directory.New(api)
			var id string
			if len(args) == 1 {
				id = args[0]
			} else if id, err = a.rootID(ctx, dir); err != nil {
				return err
			}
			nav := directory.NewNavigator(id)
			if *path != "" {
				if err := dir.Walk(ctx, nav, *path); err != nil {
					return err
				}
				o.Println(nav.String())
			}
			l, err := dir.List(ctx, nav.Current().ID)
			if err != nil {
				return err
			}
			if *match != "" {
				l = filterListing(l, *match)
			}
			if len(l.Folders)+len(l.Files) == 0 {
				o.Println("empty")
				return nil
			}
			o.Println(render.Listing(l))
			return nil
		},
	}
}

func filterListing(l *directory.Listing, pattern string) *directory.Listing {
	out := &directory.Listing{}
	for _, f := range l.Folders {
		if ok, _ := doublestar.Match(pattern, f.Name); ok {
			out.Folders = append(out.Folders, f)
		}
	}
	for _, f := range l.Files {
		if ok, _ := doublestar.Match(pattern, f.Name); ok {
			out.Files = append(out.Files, f)
		}
	}
	return out
}
