package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/maruel/xbase/internal/render"
	"github.com/maruel/xbase/internal/session"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
)

var editCommands = []string{"cell", "set", "done", "cancel", "save", "diff", "show", "help", "quit", "exit"}

func (a *app) cmdEdit() *Command {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	return &Command{
		Flags: fs,
		Usage: "edit <locator>",
		Short: "Edit a stored file interactively",
		Long: `Load a stored file and edit it cell by cell.

Commands:
  cell <row> <column>  Make a cell active
  set <value>          Set the active cell; quote the value for escapes ("a\nb")
  done                 Leave the active cell
  cancel               Discard every pending edit
  save                 Write the edited table back to storage
  diff                 Show pending changes
  show                 Show the edit buffer
  quit                 Leave; pending edits are lost`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := requireArgs(args, 1, "exactly one locator"); err != nil {
				return err
			}
			s, err := a.open(ctx, o, args[0])
			if err != nil {
				return err
			}
			p := a.prompter()
			defer p.Close()
			return (&editor{s: s, o: o, p: p}).run(ctx)
		},
	}
}

// prompter reads one command line at a time.
type prompter interface {
	Prompt(prompt string) (string, error)
	Close() error
}

func (a *app) prompter() prompter {
	if f, ok := a.in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return newTermPrompter(filepath.Join(a.cfg.DataDir, "edit_history"))
	}
	return &scanPrompter{s: bufio.NewScanner(a.in)}
}

// termPrompter is a line editor with history and completion.
type termPrompter struct {
	l       *liner.State
	history string
}

func newTermPrompter(history string) *termPrompter {
	t := &termPrompter{l: liner.NewLiner(), history: history}
	t.l.SetCtrlCAborts(true)
	t.l.SetCompleter(func(line string) []string {
		var out []string
		for _, c := range editCommands {
			if strings.HasPrefix(c, strings.ToLower(line)) {
				out = append(out, c)
			}
		}
		return out
	})
	if f, err := os.Open(history); err == nil {
		_, _ = t.l.ReadHistory(f)
		_ = f.Close()
	}
	return t
}

func (t *termPrompter) Prompt(prompt string) (string, error) {
	line, err := t.l.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err == nil && strings.TrimSpace(line) != "" {
		t.l.AppendHistory(line)
	}
	return line, err
}

func (t *termPrompter) Close() error {
	if err := os.MkdirAll(filepath.Dir(t.history), 0o755); err == nil {
		if f, err := os.Create(t.history); err == nil {
			_, _ = t.l.WriteHistory(f)
			_ = f.Close()
		}
	}
	return t.l.Close()
}

// scanPrompter reads commands from a non-interactive stream. No prompt is
// printed.
type scanPrompter struct {
	s *bufio.Scanner
}

func (p *scanPrompter) Prompt(string) (string, error) {
	if p.s.Scan() {
		return p.s.Text(), nil
	}
	if err := p.s.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (p *scanPrompter) Close() error { return nil }

type editor struct {
	s *session.Session
	o *IO
	p prompter
}

func (e *editor) prompt() string {
	st := e.s.State()
	name := st.File.Name
	if st.Active != nil {
		return fmt.Sprintf("%s [%s]> ", name, st.Active)
	}
	if session.Dirty(st) {
		return name + "*> "
	}
	return name + "> "
}

func (e *editor) run(ctx context.Context) error {
	for {
		line, err := e.p.Prompt(e.prompt())
		if err != nil {
			if errors.Is(err, io.EOF) {
				e.warnDirty()
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		switch strings.ToLower(cmd) {
		case "quit", "exit", "q":
			e.warnDirty()
			return nil
		case "help", "?":
			e.o.Println("commands: " + strings.Join(editCommands, ", "))
		case "cell":
			e.cell(rest)
		case "set":
			e.set(rest)
		case "done":
			e.s.Deactivate()
		case "cancel":
			e.s.Cancel()
			e.o.Println("changes discarded")
		case "save":
			e.save(ctx)
		case "diff":
			lines := session.Changed(session.Diff(e.s.State()))
			if len(lines) == 0 {
				e.o.Println("no changes")
				continue
			}
			e.o.Printf("%s", render.Diff(lines))
		case "show":
			e.o.Println(render.State(e.s.State()))
		default:
			e.o.Printf("unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (e *editor) cell(arg string) {
	f := strings.Fields(arg)
	if len(f) < 2 {
		e.o.Println("usage: cell <row> <column>")
		return
	}
	row, err := strconv.Atoi(f[0])
	if err != nil {
		e.o.Printf("invalid row %q\n", f[0])
		return
	}
	// Column names may contain spaces.
	col := strings.TrimSpace(strings.TrimPrefix(arg, f[0]))
	st, err := e.s.Activate(session.Cell{Row: row, Column: col})
	if err != nil {
		e.o.Println("error:", err)
		return
	}
	v, _ := session.Value(st)
	e.o.Printf("%s = %s\n", st.Active, strconv.Quote(v))
}

func (e *editor) set(arg string) {
	v := arg
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		u, err := strconv.Unquote(v)
		if err != nil {
			e.o.Printf("invalid quoted value: %v\n", err)
			return
		}
		v = u
	}
	if _, err := e.s.Set(v); err != nil {
		e.o.Println("error:", err)
	}
}

func (e *editor) save(ctx context.Context) {
	st, err := e.s.Save(ctx)
	if err != nil {
		// The server message is shown verbatim.
		e.o.Println("save failed:", err.Error())
		return
	}
	e.o.Printf("saved %d rows\n", len(st.Committed.Rows))
}

func (e *editor) warnDirty() {
	if session.Dirty(e.s.State()) {
		e.o.Warn("unsaved changes to %s were discarded", e.s.State().File.Name)
	}
}
