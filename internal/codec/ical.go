package codec

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/amirbrooks/medtodo/internal/task"
)

const (
	icalProdID      = "-//MedTodo//Medical Professional Todo List//EN"
	icalCalName     = "MedTodo Tasks"
	icalStampLayout = "20060102T150405Z"
	// Floating local time; dates carry no zone.
	icalLocalLayout = "20060102T150405"
	icalFoldOctets  = 75
	defaultStart    = "09:00"
)

// ExportCalendar renders open dated tasks as VEVENT blocks in collection
// order. It returns the document and the number of events; with no
// qualifying tasks the document is empty.
func ExportCalendar(tasks []task.Task, stamp time.Time) (string, int) {
	var events []string
	count := 0
	for _, t := range tasks {
		if t.Completed || !t.HasDue() {
			continue
		}
		lines, ok := eventLines(t, stamp)
		if !ok {
			continue
		}
		events = append(events, lines...)
		count++
	}
	if count == 0 {
		return "", 0
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + icalProdID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"X-WR-CALNAME:" + icalCalName,
	}
	lines = append(lines, events...)
	lines = append(lines, "END:VCALENDAR")

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(foldLine(l))
		b.WriteString("\r\n")
	}
	return b.String(), count
}

func eventLines(t task.Task, stamp time.Time) ([]string, bool) {
	clock := t.DueTime
	timed := true
	if _, err := time.Parse(task.TimeLayout, clock); err != nil {
		clock = defaultStart
		timed = false
	}
	start, err := time.Parse(task.DateLayout+" "+task.TimeLayout, t.DueDate+" "+clock)
	if err != nil {
		return nil, false
	}
	end := start.Add(24 * time.Hour)
	if timed {
		end = start.Add(time.Hour)
	}

	summary := escapeText(t.Title)
	lines := []string{
		"BEGIN:VEVENT",
		"UID:" + strings.ReplaceAll(t.ID, "-", "") + "@medtodo",
		"DTSTAMP:" + stamp.UTC().Format(icalStampLayout),
		"DTSTART:" + start.Format(icalLocalLayout),
		"DTEND:" + end.Format(icalLocalLayout),
		"SUMMARY:" + summary,
		"DESCRIPTION:" + escapeText(description(t)),
		fmt.Sprintf("PRIORITY:%d", icalPriority(t.Priority)),
		"CATEGORIES:" + escapeText(categoryOrDefault(t.Category)),
	}
	if t.Priority == task.PriorityHigh && timed {
		lines = append(lines,
			"BEGIN:VALARM",
			"TRIGGER:-PT15M",
			"ACTION:DISPLAY",
			"DESCRIPTION:Reminder: "+summary,
			"END:VALARM",
		)
	}
	lines = append(lines, "END:VEVENT")
	return lines, true
}

func description(t task.Task) string {
	parts := []string{t.Notes}
	if t.Notes == "" {
		parts[0] = t.Title
	}
	if t.Category != "" {
		parts = append(parts, "Category: "+string(t.Category))
	}
	if t.Tag != "" {
		parts = append(parts, "Tag: "+t.Tag)
	}
	if t.Priority != "" {
		parts = append(parts, "Priority: "+string(t.Priority))
	}
	return strings.Join(parts, "\n")
}

func categoryOrDefault(c task.Category) string {
	if c == "" {
		return "Task"
	}
	return string(c)
}

func icalPriority(p task.Priority) int {
	switch p {
	case task.PriorityHigh:
		return 1
	case task.PriorityLow:
		return 9
	default:
		return 5
	}
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", `\n`,
)

// escapeText applies TEXT value escaping from RFC 5545 section 3.3.11.
func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// foldLine splits content lines longer than 75 octets, continuing with a
// leading space and never cutting inside a UTF-8 sequence.
func foldLine(line string) string {
	if len(line) <= icalFoldOctets {
		return line
	}
	var b strings.Builder
	limit := icalFoldOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		b.WriteString(line[:cut])
		b.WriteString("\r\n ")
		line = line[cut:]
		// Continuation lines spend one octet on the leading space.
		limit = icalFoldOctets - 1
	}
	b.WriteString(line)
	return b.String()
}
