package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/amirbrooks/medtodo/internal/task"
)

// 2024-05-01 is a Wednesday.
func fixedParser() *Parser {
	return New().WithClock(func() time.Time {
		return time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	})
}

func TestParseTeamSync(t *testing.T) {
	r := fixedParser().Parse("Team sync tomorrow at 2pm !high #meeting")
	assert.Equal(t, "Team sync", r.Title)
	assert.Equal(t, task.PriorityHigh, r.Priority)
	assert.Equal(t, "#meeting", r.Tag)
	assert.Equal(t, "14:00", r.DueTime)
	assert.Equal(t, "2024-05-02", r.DueDate)
	assert.Equal(t, task.CategoryWork, r.Category)
	assert.Empty(t, r.Notes)
}

func TestParseExplicitCategoryAndOffset(t *testing.T) {
	r := fixedParser().Parse("Lab results review in 3 days category:clinical")
	assert.Equal(t, "Lab results review", r.Title)
	assert.Equal(t, task.CategoryClinical, r.Category)
	assert.Equal(t, "2024-05-04", r.DueDate)
	assert.Empty(t, r.DueTime)
}

func TestParseDefaultsWhenNothingMatches(t *testing.T) {
	r := fixedParser().Parse("  Buy groceries  ")
	assert.Equal(t, Result{
		Title:    "Buy groceries",
		Priority: task.PriorityMedium,
		Category: task.CategoryWork,
	}, r)
}

func TestParsePriorityForms(t *testing.T) {
	tests := []struct {
		text string
		want task.Priority
	}{
		{"Call back !low", task.PriorityLow},
		{"Call back !MEDIUM", task.PriorityMedium},
		{"Call back !High", task.PriorityHigh},
		{"Call back !", task.PriorityMedium},
		{"Call back !!", task.PriorityHigh},
		{"Call back !!!", task.PriorityHigh},
		{"Call back !!!!", task.PriorityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			r := fixedParser().Parse(tt.text)
			assert.Equal(t, tt.want, r.Priority)
			assert.Equal(t, "Call back", r.Title)
		})
	}
}

func TestParseFirstPriorityWins(t *testing.T) {
	r := fixedParser().Parse("Triage !low inbox !high")
	assert.Equal(t, task.PriorityLow, r.Priority)
	assert.Equal(t, "Triage  inbox !high", r.Title)
}

func TestParseNotes(t *testing.T) {
	r := fixedParser().Parse("Prepare slides notes: bring monday handouts !high friday")
	assert.Equal(t, "bring monday handouts", r.Notes)
	assert.Equal(t, task.PriorityHigh, r.Priority)
	assert.Equal(t, "2024-05-03", r.DueDate, "weekday inside notes is not a date")
	assert.Equal(t, "Prepare slides", r.Title)
}

func TestParseNotesToEndOfText(t *testing.T) {
	r := fixedParser().Parse("Renew license note: check the form online")
	assert.Equal(t, "check the form online", r.Notes)
	assert.Equal(t, "Renew license", r.Title)
}

func TestParseNotesStopsAtCategory(t *testing.T) {
	r := fixedParser().Parse("Grant draft notes: aims page category:research")
	assert.Equal(t, "aims page", r.Notes)
	assert.Equal(t, task.CategoryResearch, r.Category)
	assert.Equal(t, "Grant draft", r.Title)
}

func TestParseImplicitCategoryOnlyAtEnd(t *testing.T) {
	r := fixedParser().Parse("Fix the sink home")
	assert.Equal(t, task.CategoryHome, r.Category)
	assert.Equal(t, "Fix the sink", r.Title)

	r = fixedParser().Parse("Home office cleanup")
	assert.Equal(t, task.CategoryWork, r.Category)
	assert.Equal(t, "Home office cleanup", r.Title)
}

func TestParseCategoryBeforeDateByOrder(t *testing.T) {
	// The trailing word is a weekday, so no implicit category fires.
	r := fixedParser().Parse("Report teaching friday")
	assert.Equal(t, task.CategoryWork, r.Category)
	assert.Equal(t, "2024-05-03", r.DueDate)
	assert.Equal(t, "Report teaching", r.Title)

	// A trailing tag hides the category word from the end-of-text rule.
	r = fixedParser().Parse("Grade papers teaching #exam")
	assert.Equal(t, task.CategoryWork, r.Category)
	assert.Equal(t, "#exam", r.Tag)
	assert.Equal(t, "Grade papers teaching", r.Title)
}

func TestParseFirstTagOnly(t *testing.T) {
	r := fixedParser().Parse("Review #paper-42 with #team")
	assert.Equal(t, "#paper-42", r.Tag)
	assert.Equal(t, "Review  with #team", r.Title)
}

func TestParseRejectedTimeStaysInTitle(t *testing.T) {
	r := fixedParser().Parse("Pick up 13pm order")
	assert.Empty(t, r.DueTime)
	assert.Equal(t, "Pick up 13pm order", r.Title)
}

func TestParseTwentyFourHourTimeAndIsoDate(t *testing.T) {
	r := fixedParser().Parse("Ward round 2024-06-10 07:30")
	assert.Equal(t, "07:30", r.DueTime)
	assert.Equal(t, "2024-06-10", r.DueDate)
	assert.Equal(t, "Ward round", r.Title)
}

func TestParseOnlyOneDateRuleFires(t *testing.T) {
	r := fixedParser().Parse("Submit abstract next monday or tomorrow")
	assert.Equal(t, "2024-05-06", r.DueDate)
	assert.Equal(t, "Submit abstract  or tomorrow", r.Title)
}

func TestParseKeepsInteriorWhitespace(t *testing.T) {
	r := fixedParser().Parse("Call tomorrow mom")
	assert.Equal(t, "Call  mom", r.Title)
}

func TestParseMayConsumeEverything(t *testing.T) {
	r := fixedParser().Parse("tomorrow")
	assert.Equal(t, "", r.Title)
	assert.Equal(t, "2024-05-02", r.DueDate)
}

func TestStageOrder(t *testing.T) {
	assert.Equal(t, StageOrder, New().Stages())
}

func TestResultInput(t *testing.T) {
	r := fixedParser().Parse("Journal club friday 4pm #reading research")
	in := r.Input()
	assert.Equal(t, "Journal club", in.Title)
	assert.Equal(t, "research", in.Category)
	assert.Equal(t, "#reading", in.Tag)
	assert.Equal(t, "16:00", in.DueTime)
	assert.Equal(t, "2024-05-03", in.DueDate)
}
