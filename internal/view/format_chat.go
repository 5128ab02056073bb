package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirbrooks/medtodo/internal/schedule"
	"github.com/amirbrooks/medtodo/internal/task"
)

// chatMaxChars keeps a summary inside a single chat message.
const chatMaxChars = 3800

// IsChatFormat reports whether format selects the compact emoji layout.
func IsChatFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "chat", "telegram":
		return true
	default:
		return false
	}
}

func trimChatOutput(s string) string {
	s = strings.TrimRight(s, "\n")
	runes := []rune(s)
	if len(runes) <= chatMaxChars {
		return s
	}
	suffix := []rune("\n… (truncated)")
	return string(runes[:chatMaxChars-len(suffix)]) + string(suffix)
}

func priorityEmoji(p task.Priority) string {
	switch p {
	case task.PriorityHigh:
		return "🔴"
	case task.PriorityLow:
		return "🟡"
	default:
		return ""
	}
}

func categoryEmoji(c task.Category) string {
	switch c {
	case task.CategoryWork:
		return "💼"
	case task.CategoryHome:
		return "🏠"
	case task.CategoryResearch:
		return "🔬"
	case task.CategoryClinical:
		return "🩺"
	case task.CategoryTeaching:
		return "🎓"
	default:
		return ""
	}
}

// formatDueShort drops the year for dates in the current year.
func formatDueShort(date string, now time.Time) string {
	d, ok := schedule.ParseDate(date)
	if !ok {
		return date
	}
	if d.Year() == now.Year() {
		return d.Format("Jan 02")
	}
	return d.Format("Jan 02 2006")
}

func chatTaskLine(t task.Task, groupBy string, includeDue bool, now time.Time) string {
	var b strings.Builder
	b.WriteString("• ")
	if pri := priorityEmoji(t.Priority); pri != "" {
		b.WriteString(pri + " ")
	}
	if t.DueTime != "" {
		b.WriteString(t.DueTime + " ")
	}
	b.WriteString(t.Title)
	if groupBy != "category" {
		b.WriteString(" — " + strings.TrimSpace(categoryEmoji(t.Category)+" "+string(t.Category)))
	}
	if includeDue && t.DueDate != "" {
		b.WriteString(" (due " + formatDueShort(t.DueDate, now) + ")")
	}
	b.WriteString("\n")
	return b.String()
}

func chatGroupHeader(groupBy, key string, count int, showTotals bool) string {
	label := key
	if groupBy == "category" {
		label = strings.TrimSpace(categoryEmoji(task.Category(key)) + " " + key)
	}
	if showTotals {
		return fmt.Sprintf("%s (%d)", label, count)
	}
	return label
}

func writeChatSection(b *strings.Builder, title string, tasks []task.Task, opts RenderOptions, includeDue bool, now time.Time) bool {
	if len(tasks) == 0 {
		return false
	}
	b.WriteString(title + "\n")
	groupBy := NormalizeGroupBy(opts.GroupBy)
	if groupBy == "" {
		for _, t := range tasks {
			b.WriteString(chatTaskLine(t, "", includeDue, now))
		}
		b.WriteString("\n")
		return true
	}
	keys, grouped := groupTasks(tasks, groupBy)
	for _, key := range keys {
		b.WriteString(chatGroupHeader(groupBy, key, len(grouped[key]), opts.ShowTotals) + "\n")
		for _, t := range grouped[key] {
			b.WriteString(chatTaskLine(t, groupBy, includeDue, now))
		}
	}
	b.WriteString("\n")
	return true
}

func renderChatToday(tasks []task.Task, now time.Time, opts RenderOptions) string {
	today := schedule.FormatDate(schedule.Midnight(now))
	dueToday := Today(tasks, now)
	overdue := Overdue(tasks, now)

	var b strings.Builder
	header := fmt.Sprintf("📅 Today — %s", today)
	if len(dueToday)+len(overdue) > 0 {
		header = fmt.Sprintf("📅 Today — %s (due %d, overdue %d)", today, len(dueToday), len(overdue))
	}
	b.WriteString(header + "\n\n")
	wrote := writeChatSection(&b, "⏰ Due today", dueToday, opts, false, now)
	if writeChatSection(&b, "⚠️ Overdue", overdue, opts, true, now) {
		wrote = true
	}
	if !wrote {
		b.WriteString("No tasks due.\n")
	}
	return trimChatOutput(b.String())
}

func renderChatWeek(tasks []task.Task, now time.Time, opts RenderOptions) string {
	days := Week(tasks, now, opts.Days)
	overdue := Overdue(tasks, now)
	total := 0
	for _, d := range days {
		total += len(d.Tasks)
	}

	var b strings.Builder
	header := fmt.Sprintf("📅 Week — %s → %s", days[0].Date, days[len(days)-1].Date)
	if total+len(overdue) > 0 {
		header += fmt.Sprintf(" (due %d, overdue %d)", total, len(overdue))
	}
	b.WriteString(header + "\n\n")
	wrote := writeChatSection(&b, "⚠️ Overdue", overdue, opts, true, now)
	for _, d := range days {
		if writeChatSection(&b, fmt.Sprintf("📆 %s (%s)", d.Date, d.Weekday()), d.Tasks, opts, false, now) {
			wrote = true
		}
	}
	if !wrote {
		b.WriteString("No upcoming tasks.\n")
	}
	return trimChatOutput(b.String())
}
