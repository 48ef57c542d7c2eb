// Package cli implements the xbase command line: browsing the directory
// service, viewing and editing stored tables, and asking the AI assistant.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/maruel/xbase/internal/apiclient"
	"github.com/maruel/xbase/internal/config"
	"github.com/maruel/xbase/internal/directory"
	"github.com/maruel/xbase/internal/locator"
	"github.com/maruel/xbase/internal/models"
	flag "github.com/spf13/pflag"
)

// app holds what commands share: the resolved configuration and clients.
type app struct {
	cfg config.Config
	in  io.Reader
}

func (a *app) proxy(ctx context.Context) *apiclient.Client {
	return apiclient.NewWithToken(ctx, a.cfg.ProxyURL, a.cfg.Token)
}

func (a *app) backend(ctx context.Context) (*apiclient.Client, error) {
	if err := a.cfg.RequireBackend(); err != nil {
		return nil, err
	}
	return apiclient.NewWithToken(ctx, a.cfg.BackendURL, a.cfg.Token), nil
}

// rootID returns the configured root folder, resolving it from the user id
// when unset.
func (a *app) rootID(ctx context.Context, dir *directory.Client) (string, error) {
	if a.cfg.RootID != "" {
		return a.cfg.RootID, nil
	}
	if a.cfg.UserID == "" {
		return "", &apiclient.InputError{Message: "no root folder: set user_id (XBASE_USER_ID) or root_id (XBASE_ROOT_ID)"}
	}
	return dir.Root(ctx, a.cfg.UserID)
}

// fileRef builds the file reference designated by a locator argument.
func fileRef(loc string) (models.FileRef, error) {
	l, err := locator.Parse(loc)
	if err != nil {
		return models.FileRef{}, err
	}
	f := models.FileRef{Name: l.Name(), BucketURL: loc}
	if owner, _, err := l.Split(); err == nil {
		f.ParentID = owner
	}
	return f, nil
}

func (a *app) commands() []*Command {
	return []*Command{
		a.cmdShow(),
		a.cmdEdit(),
		a.cmdLs(),
		a.cmdAsk(),
		a.cmdExport(),
		a.cmdUpload(),
		a.cmdHistory(),
	}
}

type globalFlags struct {
	workDir    string
	configPath string
	overrides  config.Config
}

func parseGlobalFlags(args []string) (*globalFlags, []string, error) {
	g := &globalFlags{}
	fs := flag.NewFlagSet("xbase", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)
	fs.StringVarP(&g.workDir, "cwd", "C", "", "Run as if started in `dir`")
	fs.StringVarP(&g.configPath, "config", "c", "", "Explicit config file")
	fs.StringVar(&g.overrides.ProxyURL, "proxy", "", "Storage proxy base URL")
	fs.StringVar(&g.overrides.BackendURL, "backend", "", "Directory and AI service base URL")
	fs.StringVar(&g.overrides.Bucket, "bucket", "", "Expected storage bucket")
	fs.StringVar(&g.overrides.UserID, "user", "", "User id")
	fs.StringVar(&g.overrides.RootID, "root", "", "Root folder id")
	fs.StringVar(&g.overrides.Token, "token", "", "Bearer token")
	fs.StringVar(&g.overrides.DataDir, "data-dir", "", "Local state directory")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return g, fs.Args(), nil
}

// Run is the main entry point. args excludes the program name. env is a list
// of KEY=value pairs. Returns the exit code.
func Run(ctx context.Context, in io.Reader, out, errOut io.Writer, args []string, env []string) int {
	o := NewIO(in, out, errOut)
	g, rest, err := parseGlobalFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(o, (&app{}).commands())
			return 0
		}
		o.ErrPrintln("error:", err)
		return 1
	}
	workDir := g.workDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			o.ErrPrintln("error: cannot get working directory:", err)
			return 1
		}
	}
	cfg, _, err := config.Load(workDir, g.configPath, env, g.overrides)
	if err != nil {
		o.ErrPrintln("error:", err)
		return 1
	}
	if !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(workDir, cfg.DataDir)
	}
	a := &app{cfg: cfg, in: in}
	cmds := a.commands()
	if len(rest) == 0 || rest[0] == "help" || rest[0] == "-h" || rest[0] == "--help" {
		printUsage(o, cmds)
		return 0
	}
	for _, c := range cmds {
		if c.Name() == rest[0] {
			if code := c.Run(ctx, o, rest[1:]); code != 0 {
				return code
			}
			return o.Finish()
		}
	}
	o.ErrPrintln("error: unknown command:", rest[0])
	printUsage(o, cmds)
	return 1
}

func printUsage(o *IO, cmds []*Command) {
	o.Println("Usage: xbase [global flags] <command> [args]")
	o.Println()
	o.Println("Commands:")
	for _, c := range cmds {
		o.Println(c.HelpLine())
	}
	o.Println()
	o.Println("Global flags:")
	o.Println("  -C, --cwd <dir>      Run as if started in <dir>")
	o.Println("  -c, --config <file>  Explicit config file")
	o.Println("  --proxy, --backend, --bucket, --user, --root, --token, --data-dir")
}

// describe formats an error for the user. Upstream errors carry the server
// message verbatim.
func describe(err error) string {
	var ue *apiclient.UpstreamError
	if errors.As(err, &ue) {
		return ue.Detail()
	}
	return err.Error()
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func requireArgs(args []string, n int, what string) error {
	if len(args) != n {
		return fmt.Errorf("expected %s", what)
	}
	return nil
}
