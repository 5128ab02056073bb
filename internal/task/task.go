// Package task defines the task record and the normalizers for its
// enumerated fields.
package task

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Category string

const (
	CategoryWork     Category = "work"
	CategoryHome     Category = "home"
	CategoryResearch Category = "research"
	CategoryClinical Category = "clinical"
	CategoryTeaching Category = "teaching"
)

// Categories lists the fixed category set in display order.
var Categories = []Category{CategoryWork, CategoryHome, CategoryResearch, CategoryClinical, CategoryTeaching}

// Recurrence is empty for non-recurring tasks.
type Recurrence string

const (
	RecurrenceNone    Recurrence = ""
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

func (r Recurrence) String() string {
	if r == RecurrenceNone {
		return "none"
	}
	return string(r)
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Task struct {
	ID         string     `yaml:"id" json:"id"`
	Title      string     `yaml:"title" json:"title"`
	Notes      string     `yaml:"notes,omitempty" json:"notes"`
	Priority   Priority   `yaml:"priority" json:"priority"`
	Category   Category   `yaml:"category" json:"category"`
	Tag        string     `yaml:"tag,omitempty" json:"tag"`
	DueDate    string     `yaml:"dueDate,omitempty" json:"dueDate"`
	DueTime    string     `yaml:"dueTime,omitempty" json:"dueTime"`
	Recurrence Recurrence `yaml:"recurrence,omitempty" json:"recurrence"`
	Completed  bool       `yaml:"completed" json:"completed"`
	CreatedAt  time.Time  `yaml:"createdAt" json:"createdAt"`
}

// Input carries the caller-supplied fields of a new task.
type Input struct {
	Title      string
	Notes      string
	Priority   string
	Category   string
	Tag        string
	DueDate    string
	DueTime    string
	Recurrence string
}

var timeNow = func() time.Time { return time.Now().UTC() }

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }

// New builds a task from in. It reports false when the trimmed title is empty.
func New(in Input) (Task, bool) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Task{}, false
	}
	return Task{
		ID:         NewID(),
		Title:      title,
		Notes:      strings.TrimSpace(in.Notes),
		Priority:   NormalizePriority(in.Priority),
		Category:   NormalizeCategory(in.Category),
		Tag:        NormalizeTag(in.Tag),
		DueDate:    NormalizeDueDate(in.DueDate),
		DueTime:    NormalizeDueTime(in.DueTime),
		Recurrence: NormalizeRecurrence(in.Recurrence),
		CreatedAt:  timeNow(),
	}, true
}

// NewID returns a fresh lexically sortable identifier.
func NewID() string {
	t := ulid.Timestamp(timeNow())
	entropy := ulid.Monotonic(randReader{}, 0)
	id, err := ulid.New(t, entropy)
	if err != nil {
		return fmt.Sprintf("%d", timeNow().UnixNano())
	}
	return strings.ToLower(id.String())
}

func NormalizePriority(s string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	default:
		return PriorityMedium
	}
}

func NormalizeCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return CategoryWork
}

var (
	clockRe   = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	tagRe     = regexp.MustCompile(`^#\w[\w-]*$`)
	bareTagRe = regexp.MustCompile(`^\w[\w-]*$`)
)

// NormalizeDueDate keeps s only when it is a real YYYY-MM-DD date.
func NormalizeDueDate(s string) string {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(DateLayout, s); err != nil {
		return ""
	}
	return s
}

// NormalizeDueTime returns s as zero-padded HH:MM, or "" when it is not a
// valid 24-hour clock time.
func NormalizeDueTime(s string) string {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ""
	}
	h, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if h > 23 || minute > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", h, minute)
}

// NormalizeTag accepts "#word" or a bare word, which gets the "#".
// Anything else is dropped.
func NormalizeTag(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case tagRe.MatchString(s):
		return s
	case bareTagRe.MatchString(s):
		return "#" + s
	default:
		return ""
	}
}

func NormalizeRecurrence(s string) Recurrence {
	switch r := Recurrence(strings.ToLower(strings.TrimSpace(s))); r {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return r
	default:
		return RecurrenceNone
	}
}

// Rank orders priorities high first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

func (t Task) HasDue() bool { return t.DueDate != "" }

// Recurs reports whether completing t spawns a successor.
func (t Task) Recurs() bool {
	return t.DueDate != "" && t.Recurrence != RecurrenceNone
}

// Normalize coerces every field to a valid value, falling back to the
// documented defaults.
func (t Task) Normalize() Task {
	t.Title = strings.TrimSpace(t.Title)
	t.Notes = strings.TrimSpace(t.Notes)
	t.Tag = NormalizeTag(t.Tag)
	t.DueDate = NormalizeDueDate(t.DueDate)
	t.DueTime = NormalizeDueTime(t.DueTime)
	t.Priority = NormalizePriority(string(t.Priority))
	t.Category = NormalizeCategory(string(t.Category))
	t.Recurrence = NormalizeRecurrence(string(t.Recurrence))
	return t
}

func (t Task) IDShort(n int) string {
	if len(t.ID) <= n {
		return t.ID
	}
	return t.ID[:n]
}

func (t Task) PriorityAbbrev() string {
	switch t.Priority {
	case PriorityLow:
		return "L"
	case PriorityHigh:
		return "H"
	default:
		return "M"
	}
}

// DueLabel renders the due date, with its time when present.
func (t Task) DueLabel() string {
	if t.DueDate == "" {
		return ""
	}
	if t.DueTime == "" {
		return t.DueDate
	}
	return t.DueDate + " " + t.DueTime
}

// Clone copies a slice of tasks so callers never share backing arrays.
func Clone(tasks []Task) []Task {
	if tasks == nil {
		return []Task{}
	}
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}

func (t *Task) RenderHuman() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s\n", t.Title))
	b.WriteString(fmt.Sprintf("ID: %s\n", t.ID))
	b.WriteString(fmt.Sprintf("Category: %s\n", t.Category))
	b.WriteString(fmt.Sprintf("Priority: %s\n", t.Priority))
	if t.Tag != "" {
		b.WriteString(fmt.Sprintf("Tag: %s\n", t.Tag))
	}
	if due := t.DueLabel(); due != "" {
		b.WriteString(fmt.Sprintf("Due: %s\n", due))
	}
	if t.Recurrence != RecurrenceNone {
		b.WriteString(fmt.Sprintf("Repeats: %s\n", t.Recurrence))
	}
	status := "active"
	if t.Completed {
		status = "completed"
	}
	b.WriteString(fmt.Sprintf("Status: %s\n", status))
	if t.Notes != "" {
		b.WriteString("\n")
		b.WriteString(t.Notes)
		b.WriteString("\n")
	}
	return b.String()
}
