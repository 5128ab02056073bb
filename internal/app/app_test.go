package app

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirbrooks/medtodo/internal/codec"
	"github.com/amirbrooks/medtodo/internal/store"
	"github.com/amirbrooks/medtodo/internal/task"
)

type memStore struct {
	tasks   []task.Task
	saves   int
	saveErr error
	loadErr error
}

func (m *memStore) Load() ([]task.Task, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return task.Clone(m.tasks), nil
}

func (m *memStore) Save(tasks []task.Task) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.tasks = task.Clone(tasks)
	return nil
}

var clock = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func newController(t *testing.T, st *memStore, opts ...Option) *Controller {
	t.Helper()
	n := 0
	base := []Option{
		WithClock(func() time.Time { return clock }),
		WithIDs(func() string { n++; return fmt.Sprintf("id%02d", n) }),
	}
	c, err := New(st, append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func titles(tasks []task.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func TestAddPrependsAndPersists(t *testing.T) {
	st := &memStore{}
	c := newController(t, st)

	_, ok, err := c.Add(task.Input{Title: "first"})
	require.NoError(t, err)
	require.True(t, ok)
	added, ok, err := c.Add(task.Input{Title: " second ", Priority: "HIGH", Category: "nope"})
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "id02", added.ID)
	assert.Equal(t, task.PriorityHigh, added.Priority)
	assert.Equal(t, task.CategoryWork, added.Category)
	assert.Equal(t, clock, added.CreatedAt)
	assert.Equal(t, []string{"second", "first"}, titles(c.Snapshot()))
	assert.Equal(t, []string{"second", "first"}, titles(st.tasks))
}

func TestAddEmptyTitleIsNoop(t *testing.T) {
	st := &memStore{}
	c := newController(t, st)
	_, ok, err := c.Add(task.Input{Title: "   "})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, st.saves)
	assert.Empty(t, c.Snapshot())
}

func TestQuickAddUsesControllerClock(t *testing.T) {
	c := newController(t, &memStore{})
	got, ok, err := c.QuickAdd("Team sync tomorrow at 3pm !high #ops")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Team sync", got.Title)
	assert.Equal(t, "2024-01-02", got.DueDate)
	assert.Equal(t, "15:00", got.DueTime)
	assert.Equal(t, task.PriorityHigh, got.Priority)
	assert.Equal(t, "#ops", got.Tag)
}

func TestAddFromTemplate(t *testing.T) {
	c := newController(t, &memStore{})
	got, ok, err := c.AddFromTemplate("Patient-Referral", task.Input{DueDate: "2024-01-05"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "New Patient Referral", got.Title)
	assert.Equal(t, task.CategoryClinical, got.Category)
	assert.Equal(t, "#patient", got.Tag)
	assert.Equal(t, "2024-01-05", got.DueDate)

	_, _, err = c.AddFromTemplate("nope", task.Input{})
	assert.True(t, errors.Is(err, store.ErrInvalid))
}

func TestCompleteWeeklySpawnsSuccessor(t *testing.T) {
	st := &memStore{tasks: []task.Task{{
		ID: "r1", Title: "Journal club", Priority: task.PriorityHigh, Category: task.CategoryTeaching,
		Tag: "#jc", DueDate: "2024-01-01", DueTime: "07:30", Recurrence: task.RecurrenceWeekly,
	}}}
	var changes []Change
	c := newController(t, st)
	c.Subscribe(ObserverFunc(func(ch Change) { changes = append(changes, ch) }))

	done, next, err := c.Complete("r1")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.True(t, done.Completed)
	assert.Equal(t, "2024-01-08", next.DueDate)
	assert.Equal(t, "07:30", next.DueTime)
	assert.Equal(t, "Journal club", next.Title)
	assert.Equal(t, task.PriorityHigh, next.Priority)
	assert.Equal(t, task.CategoryTeaching, next.Category)
	assert.Equal(t, "#jc", next.Tag)
	assert.False(t, next.Completed)
	assert.NotEqual(t, "r1", next.ID)

	snap := c.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, next.ID, snap[0].ID)
	assert.True(t, snap[1].Completed)

	require.Len(t, changes, 1, "completion and successor land in one change")
	assert.Equal(t, ReasonComplete, changes[0].Reason)
	assert.Len(t, changes[0].Tasks, 2)
	assert.Equal(t, 1, st.saves)

	// Completing again changes nothing; reopening never spawns.
	_, again, err := c.Complete("r1")
	require.NoError(t, err)
	assert.Nil(t, again)
	_, reopened, err := c.SetCompleted("r1", false)
	require.NoError(t, err)
	assert.Nil(t, reopened)
	assert.Len(t, c.Snapshot(), 2)
	assert.Equal(t, 2, st.saves)
}

func TestCompleteWithoutDueDateDoesNotRecur(t *testing.T) {
	st := &memStore{tasks: []task.Task{{ID: "x", Title: "x", Recurrence: task.RecurrenceDaily}}}
	c := newController(t, st)
	_, next, err := c.Complete("x")
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Len(t, c.Snapshot(), 1)
}

func TestUpdateDeleteAndClear(t *testing.T) {
	st := &memStore{tasks: []task.Task{
		{ID: "aa1", Title: "one", Completed: true},
		{ID: "bb2", Title: "two"},
		{ID: "cc3", Title: "three", Completed: true},
	}}
	c := newController(t, st)

	title, prio := "TWO", "low"
	got, err := c.Update("bb", Patch{Title: &title, Priority: &prio})
	require.NoError(t, err)
	assert.Equal(t, "TWO", got.Title)
	assert.Equal(t, task.PriorityLow, got.Priority)

	tag, due, at := "grant", "2024-13-01", "8:15"
	got, err = c.Update("bb2", Patch{Tag: &tag, DueDate: &due, DueTime: &at})
	require.NoError(t, err)
	assert.Equal(t, "#grant", got.Tag)
	assert.Empty(t, got.DueDate)
	assert.Equal(t, "08:15", got.DueTime)

	blank := " "
	_, err = c.Update("bb2", Patch{Title: &blank})
	assert.True(t, errors.Is(err, store.ErrInvalid))

	_, err = c.Delete("zz")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	removed, err := c.Delete("aa1")
	require.NoError(t, err)
	assert.Equal(t, "one", removed.Title)

	n, err := c.ClearCompleted()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"TWO"}, titles(c.Snapshot()))

	saves := st.saves
	n, err = c.ClearCompleted()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, saves, st.saves)
}

func TestImportMarkdownPrepends(t *testing.T) {
	st := &memStore{tasks: []task.Task{{ID: "old", Title: "existing"}}}
	c := newController(t, st)

	md := "- [ ] alpha (priority: high, category: home)\n- [x] beta (priority: low, category: work)\n"
	n, err := c.ImportMarkdown(md)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"beta", "alpha", "existing"}, titles(c.Snapshot()))

	saves := st.saves
	n, err = c.ImportMarkdown("just prose\n")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, saves, st.saves)
}

func TestImportBackupModes(t *testing.T) {
	st := &memStore{tasks: []task.Task{{ID: "a", Title: "kept"}}}
	c := newController(t, st)

	doc := []byte(`{"tasks":[{"id":"a","title":"dup"},{"id":"b","title":"new"}]}`)
	n, err := c.ImportBackup(doc, ImportMerge)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"kept", "new"}, titles(c.Snapshot()))

	n, err = c.ImportBackup(doc, ImportReplace)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"dup", "new"}, titles(c.Snapshot()))

	saves := st.saves
	_, err = c.ImportBackup([]byte(`{"version":"1.0"}`), ImportReplace)
	assert.True(t, errors.Is(err, codec.ErrInvalidBackup))
	assert.Equal(t, []string{"dup", "new"}, titles(c.Snapshot()))
	assert.Equal(t, saves, st.saves)
}

func TestParseImportMode(t *testing.T) {
	m, err := ParseImportMode("")
	require.NoError(t, err)
	assert.Equal(t, ImportReplace, m)
	m, err = ParseImportMode("MERGE")
	require.NoError(t, err)
	assert.Equal(t, ImportMerge, m)
	_, err = ParseImportMode("append")
	assert.True(t, errors.Is(err, store.ErrInvalid))
}

func TestPersistFailureKeepsMemoryAndLogs(t *testing.T) {
	logger, hook := test.NewNullLogger()
	st := &memStore{saveErr: errors.New("disk full")}
	c := newController(t, st, WithLogger(log.NewEntry(logger)))

	notified := 0
	c.Subscribe(ObserverFunc(func(Change) { notified++ }))

	_, ok, err := c.Add(task.Input{Title: "survives"})
	assert.True(t, ok)
	assert.True(t, errors.Is(err, ErrPersist))
	assert.Equal(t, []string{"survives"}, titles(c.Snapshot()))
	assert.Equal(t, 1, notified)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, ReasonAdd, hook.LastEntry().Data["reason"])
}

func TestNewRefusesUnreadableStore(t *testing.T) {
	_, err := New(&memStore{loadErr: store.ErrInvalid})
	assert.True(t, errors.Is(err, ErrPersist))
}

func TestReplaceCarriesOrigin(t *testing.T) {
	c := newController(t, &memStore{})
	var got Change
	c.Subscribe(ObserverFunc(func(ch Change) { got = ch }))

	err := c.Replace([]task.Task{{ID: "a", Title: "A", Priority: "bogus"}, {ID: "a", Title: "dup"}, {Title: "no id"}}, "remote:xyz")
	require.NoError(t, err)
	assert.Equal(t, ReasonReplace, got.Reason)
	assert.Equal(t, "remote:xyz", got.Origin)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, task.PriorityMedium, got.Tasks[0].Priority)
}

func TestMergeKeepsExistingIDs(t *testing.T) {
	st := &memStore{tasks: []task.Task{{ID: "a", Title: "local"}}}
	c := newController(t, st)
	n, err := c.Merge([]task.Task{{ID: "a", Title: "remote"}, {ID: "b", Title: "other"}, {Title: "no id"}}, "remote:x")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"local", "other"}, titles(c.Snapshot()))

	saves := st.saves
	n, err = c.Merge([]task.Task{{ID: "a"}}, "remote:x")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, saves, st.saves)
}

func TestExportsUseSnapshot(t *testing.T) {
	st := &memStore{tasks: []task.Task{
		{ID: "a", Title: "dated", Priority: task.PriorityMedium, Category: task.CategoryWork, DueDate: "2024-01-03"},
	}}
	c := newController(t, st)
	assert.Contains(t, c.ExportMarkdown(), "- [ ] dated (priority: medium, category: work, due: 2024-01-03)")

	b, err := c.ExportBackup()
	require.NoError(t, err)
	assert.Contains(t, string(b), `"exportDate": "2024-01-01T08:00:00.000Z"`)

	ics, n := c.ExportCalendar()
	assert.Equal(t, 1, n)
	assert.Contains(t, ics, "DTSTART:20240103T090000")
}

type recordingStore struct {
	memStore
	sizes []int
}

func (r *recordingStore) Save(tasks []task.Task) error {
	r.sizes = append(r.sizes, len(tasks))
	return r.memStore.Save(tasks)
}

func TestObserversSeeChangesInApplyOrder(t *testing.T) {
	st := &recordingStore{}
	c, err := New(st, WithClock(func() time.Time { return clock }))
	require.NoError(t, err)

	var seen []int
	c.Subscribe(ObserverFunc(func(ch Change) {
		time.Sleep(time.Millisecond)
		seen = append(seen, len(ch.Tasks))
	}))

	const writers = 20
	var wg sync.WaitGroup
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tasks := make([]task.Task, n)
			for j := range tasks {
				tasks[j] = task.Task{ID: fmt.Sprintf("t%02d", j), Title: "x"}
			}
			assert.NoError(t, c.Replace(tasks, OriginFile))
		}(i)
	}
	wg.Wait()

	require.Len(t, st.sizes, writers)
	assert.Equal(t, st.sizes, seen)
	assert.Len(t, c.Snapshot(), st.sizes[writers-1])
}
