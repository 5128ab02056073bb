// Package codec converts task collections to and from the exchange formats:
// checklist markdown, the JSON backup document and iCalendar (export only).
//
// Codecs never keep references to the collections they are handed. Import
// side values go through the task normalizers, so malformed fields fall back
// to defaults instead of failing.
package codec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/amirbrooks/medtodo/internal/task"
)

// NotesSeparator splits the title from the notes on a checklist line.
const NotesSeparator = " — "

// UntitledTitle replaces empty titles on import.
const UntitledTitle = "Untitled"

// ExportMarkdown renders one checklist line per task, oldest first. The
// collection is stored newest first, so the order is reversed.
func ExportMarkdown(tasks []task.Task) string {
	lines := make([]string, 0, len(tasks))
	for i := len(tasks) - 1; i >= 0; i-- {
		lines = append(lines, markdownLine(tasks[i]))
	}
	return strings.Join(lines, "\n")
}

func markdownLine(t task.Task) string {
	var b strings.Builder
	if t.Completed {
		b.WriteString("- [x] ")
	} else {
		b.WriteString("- [ ] ")
	}
	b.WriteString(singleLine(t.Title))
	if t.Notes != "" {
		b.WriteString(NotesSeparator)
		b.WriteString(singleLine(t.Notes))
	}
	if t.Tag != "" {
		b.WriteString(" " + t.Tag)
	}

	meta := []string{"priority: " + string(t.Priority)}
	if t.Category != "" {
		meta = append(meta, "category: "+string(t.Category))
	}
	if t.DueDate != "" {
		meta = append(meta, "due: "+t.DueLabel())
	}
	if t.Recurrence != task.RecurrenceNone {
		meta = append(meta, "recurrence: "+string(t.Recurrence))
	}
	b.WriteString(fmt.Sprintf(" (%s)", strings.Join(meta, ", ")))
	return b.String()
}

func singleLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

var (
	checkboxRe    = regexp.MustCompile(`^\s*- \[([ xX])\]\s*`)
	metadataRe    = regexp.MustCompile(`\(([^()]+)\)\s*$`)
	trailingTagRe = regexp.MustCompile(`(?:^|\s)(#\w[\w-]*)$`)
	lineSplitRe   = regexp.MustCompile(`\r?\n`)
)

// ImportMarkdown parses checklist lines into new tasks with fresh IDs.
// Lines without a checkbox are skipped; empty input yields nil. The result
// is in collection order (newest first), the reverse of the file order, so
// that importing an export reproduces the original collection.
func ImportMarkdown(text string) []task.Task {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []task.Task
	for _, line := range lineSplitRe.Split(text, -1) {
		t, ok := parseMarkdownLine(line)
		if !ok {
			continue
		}
		out = append(out, t)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func parseMarkdownLine(line string) (task.Task, bool) {
	box := checkboxRe.FindStringSubmatchIndex(line)
	if box == nil {
		return task.Task{}, false
	}
	completed := line[box[2]:box[3]] != " "
	content := strings.TrimSpace(line[box[1]:])

	in := task.Input{}
	if m := metadataRe.FindStringSubmatchIndex(content); m != nil {
		applyMetadata(&in, content[m[2]:m[3]])
		content = strings.TrimSpace(content[:m[0]])
	}
	if m := trailingTagRe.FindStringSubmatchIndex(content); m != nil {
		in.Tag = content[m[2]:m[3]]
		content = strings.TrimSpace(content[:m[2]])
	}
	title, notes, _ := strings.Cut(content, NotesSeparator)
	in.Title = strings.TrimSpace(title)
	in.Notes = strings.TrimSpace(notes)
	if in.Title == "" {
		in.Title = UntitledTitle
	}

	t, ok := task.New(in)
	if !ok {
		return task.Task{}, false
	}
	t.Completed = completed
	return t, true
}

// applyMetadata reads "key: value" pairs in any order. Unknown keys are
// ignored and values are normalized.
func applyMetadata(in *task.Input, meta string) {
	for _, part := range strings.Split(meta, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "priority":
			in.Priority = value
		case "category":
			in.Category = value
		case "recurrence":
			in.Recurrence = value
		case "due":
			fields := strings.Fields(value)
			if len(fields) > 0 {
				in.DueDate = fields[0]
			}
			if len(fields) > 1 {
				in.DueTime = fields[1]
			}
		}
	}
}
