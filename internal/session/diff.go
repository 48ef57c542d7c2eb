package session

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Line kinds.
const (
	LineContext = "context"
	LineAdded   = "added"
	LineRemoved = "removed"
)

// Line is one line of a pending change diff.
type Line struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
}

// Diff returns the line level difference between the committed content and
// the buffer, both as CSV text.
func Diff(s State) []Line {
	if s.Committed == nil {
		return nil
	}
	return textDiff(s.Committed.String(), Text(s))
}

// Changed filters lines to additions and removals.
func Changed(lines []Line) []Line {
	var out []Line
	for _, l := range lines {
		if l.Type != LineContext {
			out = append(out, l)
		}
	}
	return out
}

func textDiff(before, after string) []Line {
	// Serialized text has no trailing newline; add one so the last line
	// compares equal to itself.
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before+"\n", after+"\n")
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var lines []Line
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		for _, text := range chunk {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, Line{Type: LineContext, Text: text, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				lines = append(lines, Line{Type: LineRemoved, Text: text, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				lines = append(lines, Line{Type: LineAdded, Text: text, NewLine: newLine})
				newLine++
			}
		}
	}
	return lines
}
