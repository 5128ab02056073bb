package view

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/amirbrooks/medtodo/internal/schedule"
	"github.com/amirbrooks/medtodo/internal/task"
)

// RenderOptions controls the text summaries.
type RenderOptions struct {
	GroupBy    string
	ShowTotals bool
	Days       int
	Format     string
}

// RenderToday summarizes open tasks due today, followed by anything overdue.
func RenderToday(tasks []task.Task, now time.Time, opts RenderOptions) string {
	if IsChatFormat(opts.Format) {
		return renderChatToday(tasks, now, opts)
	}
	today := schedule.FormatDate(schedule.Midnight(now))
	dueToday := Today(tasks, now)
	overdue := Overdue(tasks, now)
	if len(dueToday) == 0 && len(overdue) == 0 {
		return fmt.Sprintf("Today (%s) - nothing due, nothing overdue", today)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Today (%s) - due %d, overdue %d\n\n", today, len(dueToday), len(overdue)))
	writeTaskSection(&b, "Due today", dueToday, opts, false)
	writeTaskSection(&b, "Overdue", overdue, opts, true)
	return strings.TrimRight(b.String(), "\n")
}

// RenderWeek prints one section per day of the range, skipping empty days.
func RenderWeek(tasks []task.Task, now time.Time, opts RenderOptions) string {
	if IsChatFormat(opts.Format) {
		return renderChatWeek(tasks, now, opts)
	}
	days := Week(tasks, now, opts.Days)
	total := 0
	for _, d := range days {
		total += len(d.Tasks)
	}
	overdue := Overdue(tasks, now)
	rangeLabel := fmt.Sprintf("%s -> %s", days[0].Date, days[len(days)-1].Date)
	if total == 0 && len(overdue) == 0 {
		return fmt.Sprintf("Week (%d days) - %s - nothing due, nothing overdue", len(days), rangeLabel)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Week (%d days) - %s - due %d, overdue %d\n\n", len(days), rangeLabel, total, len(overdue)))
	writeTaskSection(&b, "Overdue", overdue, opts, true)
	for _, d := range days {
		writeTaskSection(&b, fmt.Sprintf("%s (%s)", d.Date, d.Weekday()), d.Tasks, opts, false)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderCalendar lists each due bucket with its summary line.
func RenderCalendar(tasks []task.Task) string {
	days := Calendar(tasks)
	if len(days) == 0 {
		return "No tasks with due dates yet."
	}
	var b strings.Builder
	for _, d := range days {
		b.WriteString(fmt.Sprintf("%s (%s)  %s\n", d.Date, d.Weekday(), d.Summary()))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderCounts renders "N tasks" with a per-category breakdown.
func RenderCounts(tasks []task.Task) string {
	s := fmt.Sprintf("%d task%s", len(tasks), plural(len(tasks)))
	counts := CategoryCounts(tasks)
	if len(counts) == 0 {
		return s
	}
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%d %s", c.Count, c.Category))
	}
	return s + " (" + strings.Join(parts, ", ") + ")"
}

func writeTaskSection(b *strings.Builder, title string, tasks []task.Task, opts RenderOptions, includeDue bool) {
	if len(tasks) == 0 {
		return
	}
	b.WriteString(title + "\n")
	groupBy := NormalizeGroupBy(opts.GroupBy)
	if groupBy == "" {
		for _, t := range tasks {
			b.WriteString(formatTaskLine(t, "", includeDue))
		}
		b.WriteString("\n")
		return
	}
	keys, grouped := groupTasks(tasks, groupBy)
	for _, key := range keys {
		header := fmt.Sprintf("%s: %s", groupTitle(groupBy), key)
		if opts.ShowTotals {
			header = fmt.Sprintf("%s (%d)", header, len(grouped[key]))
		}
		b.WriteString("  " + header + "\n")
		for _, t := range grouped[key] {
			b.WriteString(formatTaskLine(t, groupBy, includeDue))
		}
		b.WriteString("\n")
	}
}

// NormalizeGroupBy accepts category, priority or none.
func NormalizeGroupBy(groupBy string) string {
	groupBy = strings.TrimSpace(strings.ToLower(groupBy))
	switch groupBy {
	case "category", "priority":
		return groupBy
	default:
		return ""
	}
}

func groupTitle(groupBy string) string {
	return strings.ToUpper(groupBy[:1]) + groupBy[1:]
}

func groupTasks(tasks []task.Task, groupBy string) ([]string, map[string][]task.Task) {
	grouped := map[string][]task.Task{}
	for _, t := range tasks {
		key := string(t.Category)
		if groupBy == "priority" {
			key = string(t.Priority)
		}
		grouped[key] = append(grouped[key], t)
	}
	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	if groupBy == "priority" {
		sort.Slice(keys, func(i, j int) bool {
			return task.Priority(keys[i]).Rank() < task.Priority(keys[j]).Rank()
		})
	} else {
		sort.Strings(keys)
	}
	return keys, grouped
}

func formatTaskLine(t task.Task, groupBy string, includeDue bool) string {
	indent := "  "
	if groupBy != "" {
		indent = "    "
	}
	clock := ""
	if t.DueTime != "" {
		clock = t.DueTime + " "
	}
	due := ""
	if includeDue && t.DueDate != "" {
		due = fmt.Sprintf(" (due %s)", t.DueLabel())
	}
	tag := ""
	if t.Tag != "" {
		tag = " " + t.Tag
	}
	context := string(t.Category)
	if groupBy == "category" {
		context = t.IDShort(8)
	}
	return fmt.Sprintf("%s- [%s] %s%s: %s%s%s\n", indent, t.PriorityAbbrev(), clock, context, t.Title, tag, due)
}
