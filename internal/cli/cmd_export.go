package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/maruel/xbase/internal/table"
	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
)

func (a *app) cmdExport() *Command {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	xlsxPath := fs.String("xlsx", "", "Write an Excel workbook to `path`")
	csvPath := fs.String("csv", "", "Write CSV text to `path`")
	sheet := fs.String("sheet", "", "Sheet name of the workbook (default: file name)")
	return &Command{
		Flags: fs,
		Usage: "export <locator> --xlsx <path> | --csv <path>",
		Short: "Write a stored file to a local file",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := requireArgs(args, 1, "exactly one locator"); err != nil {
				return err
			}
			if (*xlsxPath == "") == (*csvPath == "") {
				return errors.New("exactly one of --xlsx and --csv is required")
			}
			s, err := a.open(ctx, o, args[0])
			if err != nil {
				return err
			}
			st := s.State()
			var buf bytes.Buffer
			dst := *csvPath
			if dst != "" {
				buf.WriteString(st.Committed.String())
			} else {
				dst = *xlsxPath
				name := *sheet
				if name == "" {
					name = sheetName(st.File.Name)
				}
				if err := st.Committed.WriteXLSX(&buf, name); err != nil {
					return err
				}
			}
			if err := atomic.WriteFile(dst, &buf); err != nil {
				return fmt.Errorf("failed to write %s: %w", dst, err)
			}
			o.Printf("wrote %d rows to %s\n", len(st.Committed.Rows), dst)
			return nil
		},
	}
}

// sheetName derives a worksheet name from a file name. Sheet names are at
// most 31 characters and cannot contain []:*?/\.
func sheetName(file string) string {
	name := strings.TrimSuffix(file, ".csv")
	name = strings.TrimSuffix(name, ".CSV")
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, name)
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	if name == "" {
		return table.DefaultSheet
	}
	return name
}
