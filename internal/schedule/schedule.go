// Package schedule resolves natural-language dates and clock times and
// computes recurrence successors. All dates are naive calendar dates.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/amirbrooks/medtodo/internal/task"
)

// Span is a half-open byte range of matched input.
type Span struct {
	Start int
	End   int
}

// Cut removes the span from text and trims the result.
func (s Span) Cut(text string) string {
	if s.Start < 0 || s.End > len(text) || s.Start > s.End {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:s.Start] + text[s.End:])
}

// Clock is a 24-hour wall-clock time.
type Clock struct {
	Hours   int
	Minutes int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hours, c.Minutes)
}

// Midnight returns the calendar day of t as a UTC midnight value.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, bool) {
	d, err := time.Parse(task.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func FormatDate(t time.Time) string {
	return t.Format(task.DateLayout)
}

// AddDays shifts an ISO date by n days.
func AddDays(date string, n int) (string, bool) {
	d, ok := ParseDate(date)
	if !ok {
		return "", false
	}
	return FormatDate(d.AddDate(0, 0, n)), true
}

// NextOccurrence returns the successor date for a recurring task. Monthly
// recurrence uses ordinary calendar overflow: 2023-01-31 becomes 2023-03-03.
func NextOccurrence(date string, r task.Recurrence) (string, bool) {
	d, ok := ParseDate(date)
	if !ok {
		return "", false
	}
	switch r {
	case task.RecurrenceDaily:
		d = d.AddDate(0, 0, 1)
	case task.RecurrenceWeekly:
		d = d.AddDate(0, 0, 7)
	case task.RecurrenceMonthly:
		d = d.AddDate(0, 1, 0)
	default:
		return "", false
	}
	return FormatDate(d), true
}

var clockRe = regexp.MustCompile(`(?i)(?:\bat\s+)?(?:(\d{1,2})(?:[:\s](\d{2}))?\s*([ap]m?)\b|(\d{1,2}):(\d{2})\b)`)

// ResolveClockTime finds the first clock expression in text. A match whose
// hour is out of range for its form is rejected outright; no later
// candidate is tried.
func ResolveClockTime(text string) (Clock, Span, bool) {
	loc := clockRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return Clock{}, Span{}, false
	}
	group := func(i int) string {
		if loc[2*i] < 0 {
			return ""
		}
		return text[loc[2*i]:loc[2*i+1]]
	}

	var hours, minutes int
	meridiem := ""
	if group(4) != "" {
		hours, _ = strconv.Atoi(group(4))
		minutes, _ = strconv.Atoi(group(5))
	} else {
		hours, _ = strconv.Atoi(group(1))
		if m := group(2); m != "" {
			minutes, _ = strconv.Atoi(m)
		}
		meridiem = strings.ToLower(group(3))[:1]
	}

	if minutes > 59 {
		return Clock{}, Span{}, false
	}
	switch meridiem {
	case "":
		if hours > 23 {
			return Clock{}, Span{}, false
		}
	default:
		if hours < 1 || hours > 12 {
			return Clock{}, Span{}, false
		}
		if meridiem == "p" && hours < 12 {
			hours += 12
		}
		if meridiem == "a" && hours == 12 {
			hours = 0
		}
	}
	return Clock{Hours: hours, Minutes: minutes}, Span{Start: loc[0], End: loc[1]}, true
}

const weekdayAlt = `monday|tuesday|wednesday|thursday|friday|saturday|sunday`

type dateRule struct {
	name    string
	re      *regexp.Regexp
	resolve func(groups []string, today time.Time) (time.Time, bool)
}

// dateRules run in order; the first rule whose pattern matches decides.
var dateRules = []dateRule{
	{
		name: "in-offset",
		re:   regexp.MustCompile(`(?i)\bin\s+(\d+)\s+(days?|weeks?)\b`),
		resolve: func(g []string, today time.Time) (time.Time, bool) {
			n, err := strconv.Atoi(g[1])
			if err != nil {
				return time.Time{}, false
			}
			if strings.HasPrefix(strings.ToLower(g[2]), "week") {
				n *= 7
			}
			return today.AddDate(0, 0, n), true
		},
	},
	{
		name: "next-weekday",
		re:   regexp.MustCompile(`(?i)\bnext\s+(` + weekdayAlt + `)\b`),
		resolve: func(g []string, today time.Time) (time.Time, bool) {
			return upcomingWeekday(today, g[1]), true
		},
	},
	{
		name: "weekday",
		re:   regexp.MustCompile(`(?i)\b(` + weekdayAlt + `)\b`),
		resolve: func(g []string, today time.Time) (time.Time, bool) {
			return upcomingWeekday(today, g[1]), true
		},
	},
	{
		name: "next-week",
		re:   regexp.MustCompile(`(?i)\bnext\s+week\b`),
		resolve: func(_ []string, today time.Time) (time.Time, bool) {
			return today.AddDate(0, 0, 7), true
		},
	},
	{
		name: "tomorrow",
		re:   regexp.MustCompile(`(?i)\btomorrow\b`),
		resolve: func(_ []string, today time.Time) (time.Time, bool) {
			return today.AddDate(0, 0, 1), true
		},
	},
	{
		name: "today",
		re:   regexp.MustCompile(`(?i)\btoday\b`),
		resolve: func(_ []string, today time.Time) (time.Time, bool) {
			return today, true
		},
	},
	{
		name: "iso-date",
		re:   regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		resolve: func(g []string, _ time.Time) (time.Time, bool) {
			return ParseDate(g[0])
		},
	},
}

// DateRuleNames reports the resolution precedence.
func DateRuleNames() []string {
	names := make([]string, len(dateRules))
	for i, r := range dateRules {
		names[i] = r.name
	}
	return names
}

// ResolveRelativeDate resolves the highest-precedence date expression in
// text relative to the calendar day of ref.
func ResolveRelativeDate(text string, ref time.Time) (string, Span, bool) {
	today := Midnight(ref)
	for _, rule := range dateRules {
		loc := rule.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = text[loc[2*i]:loc[2*i+1]]
			}
		}
		d, ok := rule.resolve(groups, today)
		if !ok {
			// Only one rule may fire; a rejected match ends resolution.
			return "", Span{}, false
		}
		return FormatDate(d), Span{Start: loc[0], End: loc[1]}, true
	}
	return "", Span{}, false
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// upcomingWeekday is strictly after today; naming today's weekday means a
// week from now.
func upcomingWeekday(today time.Time, name string) time.Time {
	target := weekdays[strings.ToLower(name)]
	days := int(target) - int(today.Weekday())
	if days <= 0 {
		days += 7
	}
	return today.AddDate(0, 0, days)
}
