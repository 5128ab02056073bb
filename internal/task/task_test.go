package task

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		in   string
		want Priority
	}{
		{"low", PriorityLow},
		{"LOW", PriorityLow},
		{"Medium", PriorityMedium},
		{"hIgH", PriorityHigh},
		{" high ", PriorityHigh},
		{"", PriorityMedium},
		{"urgent", PriorityMedium},
		{"hi", PriorityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePriority(tt.in))
		})
	}
}

func TestNormalizeCategory(t *testing.T) {
	for _, c := range Categories {
		assert.Equal(t, c, NormalizeCategory(string(c)))
		assert.Equal(t, c, NormalizeCategory(strings.ToUpper(string(c))))
	}
	assert.Equal(t, CategoryWork, NormalizeCategory(""))
	assert.Equal(t, CategoryWork, NormalizeCategory("hobby"))
	assert.Equal(t, CategoryWork, NormalizeCategory("clin"))
}

func TestNormalizeRecurrence(t *testing.T) {
	assert.Equal(t, RecurrenceDaily, NormalizeRecurrence("Daily"))
	assert.Equal(t, RecurrenceWeekly, NormalizeRecurrence("WEEKLY"))
	assert.Equal(t, RecurrenceMonthly, NormalizeRecurrence("monthly"))
	assert.Equal(t, RecurrenceNone, NormalizeRecurrence("yearly"))
	assert.Equal(t, RecurrenceNone, NormalizeRecurrence("none"))
	assert.Equal(t, "none", RecurrenceNone.String())
}

func TestNewRejectsBlankTitle(t *testing.T) {
	_, ok := New(Input{Title: "   "})
	assert.False(t, ok)
}

func TestNewAppliesDefaults(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	prev := timeNow
	timeNow = func() time.Time { return fixed }
	defer func() { timeNow = prev }()

	tk, ok := New(Input{Title: "  Write report ", Priority: "bogus", Category: "", Recurrence: "weekly"})
	require.True(t, ok)
	assert.Equal(t, "Write report", tk.Title)
	assert.Equal(t, PriorityMedium, tk.Priority)
	assert.Equal(t, CategoryWork, tk.Category)
	assert.Equal(t, RecurrenceWeekly, tk.Recurrence)
	assert.False(t, tk.Completed)
	assert.Equal(t, fixed, tk.CreatedAt)
	assert.NotEmpty(t, tk.ID)
	assert.False(t, tk.Recurs(), "recurrence without a due date never spawns")
}

func TestNewIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id := NewID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestTemplatesAreNormalized(t *testing.T) {
	for _, name := range TemplateNames() {
		in := Templates[name]
		tk, ok := New(in)
		require.True(t, ok, name)
		assert.Equal(t, in.Priority, string(tk.Priority), name)
		assert.Equal(t, in.Category, string(tk.Category), name)
	}
}

func TestNormalizeFreeFormFields(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"iso date", NormalizeDueDate, " 2024-05-03 ", "2024-05-03"},
		{"relative date", NormalizeDueDate, "someday", ""},
		{"impossible date", NormalizeDueDate, "2024-02-30", ""},
		{"unpadded date", NormalizeDueDate, "2024-5-3", ""},
		{"clock", NormalizeDueTime, "14:30", "14:30"},
		{"short hour", NormalizeDueTime, "9:05", "09:05"},
		{"hour out of range", NormalizeDueTime, "24:00", ""},
		{"minute out of range", NormalizeDueTime, "99:99", ""},
		{"word time", NormalizeDueTime, "noon", ""},
		{"tag", NormalizeTag, "#grant-2024", "#grant-2024"},
		{"bare tag", NormalizeTag, " grant ", "#grant"},
		{"tag with space", NormalizeTag, "#two words", ""},
		{"bare hash", NormalizeTag, "#", ""},
		{"empty tag", NormalizeTag, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.in))
		})
	}
}

func TestNewAndNormalizeResetMalformedFields(t *testing.T) {
	tk, ok := New(Input{Title: "Renew badge", DueDate: "next tues", DueTime: "noon", Tag: "badge"})
	require.True(t, ok)
	assert.Empty(t, tk.DueDate)
	assert.Empty(t, tk.DueTime)
	assert.Equal(t, "#badge", tk.Tag)

	got := Task{ID: "x", Title: "x", DueDate: "someday", DueTime: "7:5", Tag: "not a tag"}.Normalize()
	assert.Empty(t, got.DueDate)
	assert.Empty(t, got.DueTime)
	assert.Empty(t, got.Tag)
	assert.False(t, got.HasDue())
}
