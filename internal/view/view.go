// Package view orders and filters task collections. Every function here
// works on a copy; the caller's slice is never reordered or mutated.
package view

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/amirbrooks/medtodo/internal/schedule"
	"github.com/amirbrooks/medtodo/internal/task"
)

// Compare orders a before b when it returns a negative number. Dated tasks
// come first, by date then by time (timed before untimed); undated tasks are
// ranked by priority. Equal keys compare as 0 so stable sorts keep input order.
func Compare(a, b task.Task) int {
	switch {
	case a.HasDue() && b.HasDue():
		if c := strings.Compare(a.DueDate, b.DueDate); c != 0 {
			return c
		}
		return compareTime(a.DueTime, b.DueTime)
	case a.HasDue():
		return -1
	case b.HasDue():
		return 1
	}
	return a.Priority.Rank() - b.Priority.Rank()
}

// compareTime puts a present time before a missing one.
func compareTime(a, b string) int {
	switch {
	case a != "" && b != "":
		return strings.Compare(a, b)
	case a != "":
		return -1
	case b != "":
		return 1
	default:
		return 0
	}
}

// Sort returns tasks ordered by Compare.
func Sort(tasks []task.Task) []task.Task {
	out := task.Clone(tasks)
	sort.SliceStable(out, func(i, j int) bool {
		return Compare(out[i], out[j]) < 0
	})
	return out
}

type Status string

const (
	StatusAll       Status = "all"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// ParseStatus falls back to all for unknown values.
func ParseStatus(s string) Status {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusCompleted:
		return st
	default:
		return StatusAll
	}
}

// Filter is a conjunction of predicates. Zero values disable a predicate.
type Filter struct {
	Date     string
	Query    string
	Status   Status
	Category task.Category
}

func (f Filter) Match(t task.Task) bool {
	if f.Date != "" && t.DueDate != f.Date {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" && !matchesQuery(t, q) {
		return false
	}
	switch f.Status {
	case StatusActive:
		if t.Completed {
			return false
		}
	case StatusCompleted:
		if !t.Completed {
			return false
		}
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	return true
}

func matchesQuery(t task.Task, q string) bool {
	for _, field := range []string{t.Title, t.Notes, t.Tag, string(t.Category)} {
		if field != "" && strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Apply returns the matching tasks in their original order.
func (f Filter) Apply(tasks []task.Task) []task.Task {
	out := []task.Task{}
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Today lists open tasks due on the calendar day of now, timed tasks first.
func Today(tasks []task.Task, now time.Time) []task.Task {
	return dueOn(tasks, schedule.FormatDate(schedule.Midnight(now)))
}

func dueOn(tasks []task.Task, date string) []task.Task {
	out := []task.Task{}
	for _, t := range tasks {
		if !t.Completed && t.DueDate == date {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return compareTime(out[i].DueTime, out[j].DueTime) < 0
	})
	return out
}

// Day is one due bucket.
type Day struct {
	Date  string      `json:"date"`
	Tasks []task.Task `json:"tasks"`
}

// Weekday returns the short weekday name of the bucket date.
func (d Day) Weekday() string {
	t, ok := schedule.ParseDate(d.Date)
	if !ok {
		return ""
	}
	return t.Weekday().String()[:3]
}

// Summary renders "N tasks" with the first time of the day, plus an
// ellipsis when more than one task is timed.
func (d Day) Summary() string {
	s := fmt.Sprintf("%d task%s", len(d.Tasks), plural(len(d.Tasks)))
	var times []string
	for _, t := range d.Tasks {
		if t.DueTime != "" {
			times = append(times, t.DueTime)
		}
	}
	if len(times) == 0 {
		return s
	}
	more := ""
	if len(times) > 1 {
		more = "..."
	}
	return fmt.Sprintf("%s (%s%s)", s, times[0], more)
}

// Week returns one bucket for each of the next days calendar days starting
// with today. Empty days are kept so callers can render the full range.
func Week(tasks []task.Task, now time.Time, days int) []Day {
	if days <= 0 {
		days = 7
	}
	start := schedule.Midnight(now)
	out := make([]Day, 0, days)
	for i := 0; i < days; i++ {
		date := schedule.FormatDate(start.AddDate(0, 0, i))
		out = append(out, Day{Date: date, Tasks: dueOn(tasks, date)})
	}
	return out
}

// Calendar buckets every dated task, completed or not, by due date.
func Calendar(tasks []task.Task) []Day {
	var out []Day
	for _, t := range Sort(tasks) {
		if !t.HasDue() {
			break
		}
		if n := len(out); n > 0 && out[n-1].Date == t.DueDate {
			out[n-1].Tasks = append(out[n-1].Tasks, t)
			continue
		}
		out = append(out, Day{Date: t.DueDate, Tasks: []task.Task{t}})
	}
	return out
}

// Overdue lists open tasks whose due date is before the day of now.
func Overdue(tasks []task.Task, now time.Time) []task.Task {
	today := schedule.FormatDate(schedule.Midnight(now))
	out := []task.Task{}
	for _, t := range Sort(tasks) {
		if !t.Completed && t.HasDue() && t.DueDate < today {
			out = append(out, t)
		}
	}
	return out
}

// CategoryCount is the number of tasks in one category.
type CategoryCount struct {
	Category task.Category `json:"category"`
	Count    int           `json:"count"`
}

// CategoryCounts counts tasks per category in the fixed category order.
// Categories without tasks are omitted.
func CategoryCounts(tasks []task.Task) []CategoryCount {
	counts := map[task.Category]int{}
	for _, t := range tasks {
		counts[t.Category]++
	}
	var out []CategoryCount
	for _, c := range task.Categories {
		if n := counts[c]; n > 0 {
			out = append(out, CategoryCount{Category: c, Count: n})
		}
	}
	return out
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
