package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirbrooks/medtodo/internal/task"
)

// 2024-05-01 is a Wednesday.
var wednesday = time.Date(2024, 5, 1, 15, 42, 0, 0, time.UTC)

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name string
		date string
		rec  task.Recurrence
		want string
		ok   bool
	}{
		{"daily", "2024-12-31", task.RecurrenceDaily, "2025-01-01", true},
		{"weekly", "2024-01-01", task.RecurrenceWeekly, "2024-01-08", true},
		{"monthly", "2024-03-15", task.RecurrenceMonthly, "2024-04-15", true},
		{"monthly overflow leap year", "2024-01-31", task.RecurrenceMonthly, "2024-03-02", true},
		{"monthly overflow", "2023-01-31", task.RecurrenceMonthly, "2023-03-03", true},
		{"none", "2024-01-01", task.RecurrenceNone, "", false},
		{"bad date", "tomorrow", task.RecurrenceDaily, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextOccurrence(tt.date, tt.rec)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextOccurrenceIsDeterministic(t *testing.T) {
	first, _ := NextOccurrence("2024-01-31", task.RecurrenceMonthly)
	for i := 0; i < 10; i++ {
		again, _ := NextOccurrence("2024-01-31", task.RecurrenceMonthly)
		require.Equal(t, first, again)
	}
}

func TestResolveRelativeDate(t *testing.T) {
	tests := []struct {
		text string
		want string
		span string
	}{
		{"in 3 days", "2024-05-04", "in 3 days"},
		{"review in 1 day", "2024-05-02", "in 1 day"},
		{"in 2 weeks", "2024-05-15", "in 2 weeks"},
		{"In 1 Week", "2024-05-08", "In 1 Week"},
		{"next monday", "2024-05-06", "next monday"},
		{"next Wednesday", "2024-05-08", "next Wednesday"},
		{"friday", "2024-05-03", "friday"},
		{"wednesday", "2024-05-08", "wednesday"},
		{"tuesday", "2024-05-07", "tuesday"},
		{"next week", "2024-05-08", "next week"},
		{"tomorrow", "2024-05-02", "tomorrow"},
		{"Today", "2024-05-01", "Today"},
		{"due 2024-06-10 ok", "2024-06-10", "2024-06-10"},
		{"tomorrow or friday", "2024-05-03", "friday"},
		{"in 2 days, not next week", "2024-05-03", "in 2 days"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, span, ok := ResolveRelativeDate(tt.text, wednesday)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.span, tt.text[span.Start:span.End])
		})
	}
}

func TestResolveRelativeDateMisses(t *testing.T) {
	for _, text := range []string{"", "write report", "2024-02-30", "todays", "weekday", "in a week"} {
		_, _, ok := ResolveRelativeDate(text, wednesday)
		assert.False(t, ok, text)
	}
}

func TestDateRulePrecedence(t *testing.T) {
	assert.Equal(t, []string{"in-offset", "next-weekday", "weekday", "next-week", "tomorrow", "today", "iso-date"}, DateRuleNames())
}

func TestResolveClockTime(t *testing.T) {
	tests := []struct {
		text  string
		want  string
		match string
	}{
		{"2pm", "14:00", "2pm"},
		{"meet at 2:30pm", "14:30", "at 2:30pm"},
		{"8a", "08:00", "8a"},
		{"at 9p", "21:00", "at 9p"},
		{"12am", "00:00", "12am"},
		{"12pm", "12:00", "12pm"},
		{"12 PM", "12:00", "12 PM"},
		{"14:00", "14:00", "14:00"},
		{"at 0:15", "00:15", "at 0:15"},
		{"at 9 30am", "09:30", "at 9 30am"},
		{"Chat 5pm", "17:00", "5pm"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			c, span, ok := ResolveClockTime(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.want, c.String())
			assert.Equal(t, tt.match, tt.text[span.Start:span.End])
		})
	}
}

func TestResolveClockTimeRejectsOutOfRange(t *testing.T) {
	for _, text := range []string{"13pm", "0am", "25:00", "7:75", "buy 3 pizzas", "2 apples", ""} {
		_, _, ok := ResolveClockTime(text)
		assert.False(t, ok, text)
	}
}

func TestSpanCut(t *testing.T) {
	text := "Call mom tomorrow"
	_, span, ok := ResolveRelativeDate(text, wednesday)
	require.True(t, ok)
	assert.Equal(t, "Call mom", span.Cut(text))
}
