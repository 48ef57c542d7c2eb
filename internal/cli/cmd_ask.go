package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/maruel/xbase/internal/assistant"
	"github.com/maruel/xbase/internal/directory"
	flag "github.com/spf13/pflag"
)

func (a *app) cmdAsk() *Command {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	contexts := fs.StringArray("context", nil, "Add the columns of the file at `locator` to the question context (repeatable)")
	reset := fs.Bool("reset", false, "Start a new conversation")
	return &Command{
		Flags: fs,
		Usage: "ask [--context <locator>]... <query...>",
		Short: "Ask the AI assistant a question",
		Long: `Ask the AI assistant a question about your files.

Each --context file contributes a "<name> columns: ..." line: CSV files by
their header row, schema items by the columns of the table they name. The
conversation history is kept in the data directory between invocations.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			query := joinArgs(args)
			if query == "" {
				return fmt.Errorf("expected a query")
			}
			api, err := a.backend(ctx)
			if err != nil {
				return err
			}
			dir := directory.New(api)
			proxy := a.proxy(ctx)
			conv, err := assistant.NewConversation(assistant.New(api), assistant.ConversationOptions{
				UserID:     a.cfg.UserID,
				ParentID:   a.cfg.RootID,
				Roots:      dir,
				Saver:      proxy,
				Transcript: filepath.Join(a.cfg.DataDir, "chat.jsonl"),
			})
			if err != nil {
				return err
			}
			if *reset {
				if err := conv.Reset(); err != nil {
					return err
				}
			}
			r := &assistant.Resolver{Proxy: proxy, Schema: dir}
			for _, loc := range *contexts {
				f, err := fileRef(loc)
				if err != nil {
					return err
				}
				if err := r.AddFile(ctx, &conv.Context, f); err != nil {
					return fmt.Errorf("context %s: %w", f.Name, err)
				}
			}
			turn, err := conv.Ask(ctx, query)
			if err != nil {
				return err
			}
			o.Println(turn.Response)
			for _, row := range turn.Rows {
				o.Println(string(row))
			}
			return nil
		},
	}
}
