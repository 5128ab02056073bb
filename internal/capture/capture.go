// Package capture turns a single line of free text into task fields.
//
// Extraction is an ordered pipeline: notes, priority, category, tag, time,
// date. Each stage sees the working title left by the stages before it and
// the span it matches is cut out immediately, so no two stages can claim
// the same text. The order is part of the contract; for example a weekday
// inside a notes segment is safe only because notes run first.
package capture

import (
	"regexp"
	"strings"
	"time"

	"github.com/amirbrooks/medtodo/internal/schedule"
	"github.com/amirbrooks/medtodo/internal/task"
)

// Result holds the extracted fields. Title is whatever text survives.
type Result struct {
	Title    string        `json:"title"`
	Notes    string        `json:"notes"`
	Priority task.Priority `json:"priority"`
	Category task.Category `json:"category"`
	Tag      string        `json:"tag"`
	DueDate  string        `json:"dueDate"`
	DueTime  string        `json:"dueTime"`
}

// Input converts the result into creation input for task.New.
func (r Result) Input() task.Input {
	return task.Input{
		Title:    r.Title,
		Notes:    r.Notes,
		Priority: string(r.Priority),
		Category: string(r.Category),
		Tag:      r.Tag,
		DueDate:  r.DueDate,
		DueTime:  r.DueTime,
	}
}

// Stage extracts one field from the working title. It returns the span it
// consumed; ok is false when nothing was extracted.
type Stage struct {
	Name    string
	Extract func(text string, now time.Time, r *Result) (span schedule.Span, ok bool)
}

// StageOrder is the fixed extraction order.
var StageOrder = []string{"notes", "priority", "category", "tag", "time", "date"}

type Parser struct {
	now    func() time.Time
	stages []Stage
}

func New() *Parser {
	return &Parser{
		now: time.Now,
		stages: []Stage{
			{Name: "notes", Extract: extractNotes},
			{Name: "priority", Extract: extractPriority},
			{Name: "category", Extract: extractCategory},
			{Name: "tag", Extract: extractTag},
			{Name: "time", Extract: extractTime},
			{Name: "date", Extract: extractDate},
		},
	}
}

// WithClock sets the reference clock used for relative dates.
func (p *Parser) WithClock(now func() time.Time) *Parser {
	if now != nil {
		p.now = now
	}
	return p
}

// Stages reports the stage names in execution order.
func (p *Parser) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Parse never fails; unmatched fields keep their defaults.
func (p *Parser) Parse(text string) Result {
	r := Result{
		Priority: task.PriorityMedium,
		Category: task.CategoryWork,
	}
	now := p.now()
	working := strings.TrimSpace(text)
	for _, stage := range p.stages {
		span, ok := stage.Extract(working, now, &r)
		if !ok {
			continue
		}
		working = span.Cut(working)
	}
	r.Title = strings.TrimSpace(working)
	return r
}

// Parse runs the default pipeline against the wall clock.
func Parse(text string) Result {
	return New().Parse(text)
}

var (
	notesMarkerRe    = regexp.MustCompile(`(?i)\bnotes?:\s*`)
	notesStopRe      = regexp.MustCompile(`(?i)[#!]|\s+category:`)
	priorityRe       = regexp.MustCompile(`(?i)!(high|medium|low)\b|!!+|!`)
	categoryNames    = `work|home|research|clinical|teaching`
	explicitCategory = regexp.MustCompile(`(?i)category:\s*(` + categoryNames + `)\b`)
	trailingCategory = regexp.MustCompile(`(?i)\b(` + categoryNames + `)\s*$`)
	tagRe            = regexp.MustCompile(`#\w[\w-]*`)
)

// extractNotes takes "notes:"/"note:" up to the next tag, priority or
// category marker, or the end of the text.
func extractNotes(text string, _ time.Time, r *Result) (schedule.Span, bool) {
	marker := notesMarkerRe.FindStringIndex(text)
	if marker == nil {
		return schedule.Span{}, false
	}
	rest := text[marker[1]:]
	end := len(rest)
	if stop := notesStopRe.FindStringIndex(rest); stop != nil {
		end = stop[0]
	}
	value := strings.TrimRight(rest[:end], " \t\r\n")
	if strings.TrimSpace(value) == "" {
		return schedule.Span{}, false
	}
	r.Notes = strings.TrimSpace(value)
	return schedule.Span{Start: marker[0], End: marker[1] + len(value)}, true
}

// extractPriority maps !high/!medium/!low to their level, "!!" and "!!!" to
// high and any other run of bangs to medium.
func extractPriority(text string, _ time.Time, r *Result) (schedule.Span, bool) {
	loc := priorityRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return schedule.Span{}, false
	}
	token := text[loc[0]:loc[1]]
	switch {
	case loc[2] >= 0:
		r.Priority = task.NormalizePriority(text[loc[2]:loc[3]])
	case token == "!!" || token == "!!!":
		r.Priority = task.PriorityHigh
	default:
		r.Priority = task.PriorityMedium
	}
	return schedule.Span{Start: loc[0], End: loc[1]}, true
}

// extractCategory prefers an explicit category:<name>; a bare category name
// counts only as the last word of the text.
func extractCategory(text string, _ time.Time, r *Result) (schedule.Span, bool) {
	loc := explicitCategory.FindStringSubmatchIndex(text)
	if loc == nil {
		loc = trailingCategory.FindStringSubmatchIndex(text)
	}
	if loc == nil {
		return schedule.Span{}, false
	}
	r.Category = task.NormalizeCategory(text[loc[2]:loc[3]])
	return schedule.Span{Start: loc[0], End: loc[1]}, true
}

func extractTag(text string, _ time.Time, r *Result) (schedule.Span, bool) {
	loc := tagRe.FindStringIndex(text)
	if loc == nil {
		return schedule.Span{}, false
	}
	r.Tag = text[loc[0]:loc[1]]
	return schedule.Span{Start: loc[0], End: loc[1]}, true
}

func extractTime(text string, _ time.Time, r *Result) (schedule.Span, bool) {
	clock, span, ok := schedule.ResolveClockTime(text)
	if !ok {
		return schedule.Span{}, false
	}
	r.DueTime = clock.String()
	return span, true
}

func extractDate(text string, now time.Time, r *Result) (schedule.Span, bool) {
	date, span, ok := schedule.ResolveRelativeDate(text, now)
	if !ok {
		return schedule.Span{}, false
	}
	r.DueDate = date
	return span, true
}
