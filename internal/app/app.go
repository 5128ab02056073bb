// Package app owns the task collection. Every mutation swaps the
// collection, persists it and notifies observers as one step.
package app

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/amirbrooks/medtodo/internal/capture"
	"github.com/amirbrooks/medtodo/internal/codec"
	"github.com/amirbrooks/medtodo/internal/schedule"
	"github.com/amirbrooks/medtodo/internal/store"
	"github.com/amirbrooks/medtodo/internal/task"
)

// ErrPersist marks a failed save. The in-memory collection has already
// changed when it is returned.
var ErrPersist = errors.New("persist failed")

// Store is the persistence collaborator.
type Store interface {
	Load() ([]task.Task, error)
	Save([]task.Task) error
}

type Reason string

const (
	ReasonAdd            Reason = "add"
	ReasonUpdate         Reason = "update"
	ReasonDelete         Reason = "delete"
	ReasonComplete       Reason = "complete"
	ReasonUncomplete     Reason = "uncomplete"
	ReasonClearCompleted Reason = "clear-completed"
	ReasonImport         Reason = "import"
	ReasonReplace        Reason = "replace"
)

// Origins for changes that did not arrive through Replace.
const (
	OriginLocal = "local"
	OriginFile  = "file"
)

// Change is delivered to observers after every mutation.
type Change struct {
	Reason Reason
	Origin string
	Tasks  []task.Task
}

// Observer receives every applied change, one at a time and in order.
// Notify must not call back into the Controller's mutating methods.
type Observer interface {
	Notify(Change)
}

type ObserverFunc func(Change)

func (f ObserverFunc) Notify(c Change) { f(c) }

type ImportMode string

const (
	ImportReplace ImportMode = "replace"
	ImportMerge   ImportMode = "merge"
)

func ParseImportMode(s string) (ImportMode, error) {
	switch m := ImportMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ImportReplace:
		return ImportReplace, nil
	case ImportMerge:
		return ImportMerge, nil
	default:
		return "", fmt.Errorf("%w: import mode must be replace or merge", store.ErrInvalid)
	}
}

type Controller struct {
	mu        sync.Mutex
	// notifyMu is taken before mu is released, so observers see changes in
	// the order they were applied.
	notifyMu  sync.Mutex
	tasks     []task.Task
	store     Store
	observers []Observer

	logger *log.Entry
	now    func() time.Time
	newID  func() string
	parser *capture.Parser
}

type Option func(*Controller)

func WithLogger(l *log.Entry) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock sets the clock used for creation stamps, relative dates and
// export headers.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithIDs(newID func() string) Option {
	return func(c *Controller) { c.newID = newID }
}

// New loads the collection from st. A load failure is returned rather than
// starting empty, so a damaged file is never overwritten.
func New(st Store, opts ...Option) (*Controller, error) {
	c := &Controller{
		store:  st,
		logger: log.NewEntry(log.StandardLogger()),
		now:    time.Now,
		newID:  task.NewID,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.parser = capture.New().WithClock(c.now)

	tasks, err := st.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrPersist, err)
	}
	c.tasks = task.Clone(tasks)
	c.logger.WithField("tasks", len(c.tasks)).Debug("collection loaded")
	return c, nil
}

func (c *Controller) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Snapshot returns a copy of the current collection, newest first.
func (c *Controller) Snapshot() []task.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return task.Clone(c.tasks)
}

// Select resolves an ID or unique ID prefix against the current collection.
func (c *Controller) Select(prefix string) (task.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return store.Select(c.tasks, prefix)
}

// mutateFunc builds the next collection from cur. Returning changed=false
// makes the call a no-op.
type mutateFunc func(cur []task.Task) (next []task.Task, changed bool, err error)

func (c *Controller) mutate(reason Reason, origin string, fn mutateFunc) (bool, error) {
	c.mu.Lock()
	next, changed, err := fn(task.Clone(c.tasks))
	if err != nil || !changed {
		c.mu.Unlock()
		return false, err
	}
	c.tasks = next
	saveErr := c.store.Save(next)
	change := Change{Reason: reason, Origin: origin, Tasks: task.Clone(next)}
	observers := append([]Observer(nil), c.observers...)
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.mu.Unlock()

	entry := c.logger.WithFields(log.Fields{"reason": reason, "origin": origin, "tasks": len(next)})
	if saveErr != nil {
		entry.WithError(saveErr).Error("save failed; keeping in-memory collection")
		saveErr = fmt.Errorf("%w: %v", ErrPersist, saveErr)
	} else {
		entry.Debug("collection saved")
	}
	for _, o := range observers {
		o.Notify(change)
	}
	return true, saveErr
}

func (c *Controller) build(in task.Input) (task.Task, bool) {
	t, ok := task.New(in)
	if !ok {
		return task.Task{}, false
	}
	t.ID = c.newID()
	t.CreatedAt = c.now().UTC()
	return t, true
}

// Add creates a task from explicit fields and prepends it. An empty title
// is a no-op reported by ok=false.
func (c *Controller) Add(in task.Input) (t task.Task, ok bool, err error) {
	t, ok = c.build(in)
	if !ok {
		return task.Task{}, false, nil
	}
	_, err = c.mutate(ReasonAdd, OriginLocal, func(cur []task.Task) ([]task.Task, bool, error) {
		return append([]task.Task{t}, cur...), true, nil
	})
	return t, true, err
}

// QuickAdd parses free text and adds the result.
func (c *Controller) QuickAdd(text string) (task.Task, bool, error) {
	return c.Add(c.parser.Parse(text).Input())
}

// Parse runs the capture parser with the controller's clock.
func (c *Controller) Parse(text string) capture.Result {
	return c.parser.Parse(text)
}

// AddFromTemplate adds a task prefilled from a named template. Non-empty
// fields of overrides win over the template.
func (c *Controller) AddFromTemplate(name string, overrides task.Input) (task.Task, bool, error) {
	in, ok := task.Templates[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return task.Task{}, false, fmt.Errorf("%w: unknown template %q (have %s)",
			store.ErrInvalid, name, strings.Join(task.TemplateNames(), ", "))
	}
	return c.Add(overlay(in, overrides))
}

func overlay(base, over task.Input) task.Input {
	pick := func(a, b string) string {
		if strings.TrimSpace(b) != "" {
			return b
		}
		return a
	}
	return task.Input{
		Title:      pick(base.Title, over.Title),
		Notes:      pick(base.Notes, over.Notes),
		Priority:   pick(base.Priority, over.Priority),
		Category:   pick(base.Category, over.Category),
		Tag:        pick(base.Tag, over.Tag),
		DueDate:    pick(base.DueDate, over.DueDate),
		DueTime:    pick(base.DueTime, over.DueTime),
		Recurrence: pick(base.Recurrence, over.Recurrence),
	}
}

// Patch holds the fields to change; nil fields are left alone.
type Patch struct {
	Title      *string
	Notes      *string
	Priority   *string
	Category   *string
	Tag        *string
	DueDate    *string
	DueTime    *string
	Recurrence *string
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.Notes == nil && p.Priority == nil && p.Category == nil &&
		p.Tag == nil && p.DueDate == nil && p.DueTime == nil && p.Recurrence == nil
}

func (p Patch) apply(t task.Task) (task.Task, error) {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return t, fmt.Errorf("%w: title cannot be empty", store.ErrInvalid)
		}
		t.Title = title
	}
	if p.Notes != nil {
		t.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.Priority != nil {
		t.Priority = task.NormalizePriority(*p.Priority)
	}
	if p.Category != nil {
		t.Category = task.NormalizeCategory(*p.Category)
	}
	if p.Tag != nil {
		t.Tag = task.NormalizeTag(*p.Tag)
	}
	if p.DueDate != nil {
		t.DueDate = task.NormalizeDueDate(*p.DueDate)
	}
	if p.DueTime != nil {
		t.DueTime = task.NormalizeDueTime(*p.DueTime)
	}
	if p.Recurrence != nil {
		t.Recurrence = task.NormalizeRecurrence(*p.Recurrence)
	}
	return t, nil
}

// Update applies patch to the task addressed by id (or unique prefix).
func (c *Controller) Update(id string, patch Patch) (task.Task, error) {
	var updated task.Task
	_, err := c.mutate(ReasonUpdate, OriginLocal, func(cur []task.Task) ([]task.Task, bool, error) {
		i, err := indexOf(cur, id)
		if err != nil {
			return nil, false, err
		}
		if patch.Empty() {
			updated = cur[i]
			return nil, false, nil
		}
		if updated, err = patch.apply(cur[i]); err != nil {
			return nil, false, err
		}
		cur[i] = updated
		return cur, true, nil
	})
	return updated, err
}

func (c *Controller) Delete(id string) (task.Task, error) {
	var removed task.Task
	_, err := c.mutate(ReasonDelete, OriginLocal, func(cur []task.Task) ([]task.Task, bool, error) {
		i, err := indexOf(cur, id)
		if err != nil {
			return nil, false, err
		}
		removed = cur[i]
		return append(cur[:i], cur[i+1:]...), true, nil
	})
	return removed, err
}

// SetCompleted marks a task done or active. Completing a recurring task
// with a due date also prepends its successor, in the same step. Marking a
// task active again never spawns anything. The successor is nil when none
// was created.
func (c *Controller) SetCompleted(id string, done bool) (task.Task, *task.Task, error) {
	reason := ReasonUncomplete
	if done {
		reason = ReasonComplete
	}
	var (
		target    task.Task
		successor *task.Task
	)
	_, err := c.mutate(reason, OriginLocal, func(cur []task.Task) ([]task.Task, bool, error) {
		i, err := indexOf(cur, id)
		if err != nil {
			return nil, false, err
		}
		target = cur[i]
		if target.Completed == done {
			return nil, false, nil
		}
		target.Completed = done
		cur[i] = target
		if !done || !target.Recurs() {
			return cur, true, nil
		}
		next, ok := c.successor(target)
		if !ok {
			return cur, true, nil
		}
		successor = &next
		return append([]task.Task{next}, cur...), true, nil
	})
	return target, successor, err
}

// Complete is SetCompleted(id, true).
func (c *Controller) Complete(id string) (task.Task, *task.Task, error) {
	return c.SetCompleted(id, true)
}

func (c *Controller) successor(t task.Task) (task.Task, bool) {
	date, ok := schedule.NextOccurrence(t.DueDate, t.Recurrence)
	if !ok {
		c.logger.WithField("id", t.ID).WithField("dueDate", t.DueDate).Warn("cannot advance recurring task")
		return task.Task{}, false
	}
	next := t
	next.ID = c.newID()
	next.DueDate = date
	next.Completed = false
	next.CreatedAt = c.now().UTC()
	return next, true
}

// ClearCompleted removes every completed task and reports how many went.
func (c *Controller) ClearCompleted() (int, error) {
	removed := 0
	_, err := c.mutate(ReasonClearCompleted, OriginLocal, func(cur []task.Task) ([]task.Task, bool, error) {
		kept := make([]task.Task, 0, len(cur))
		for _, t := range cur {
			if t.Completed {
				removed++
				continue
			}
			kept = append(kept, t)
		}
		return kept, removed > 0, nil
	})
	return removed, err
}

// ImportMarkdown prepends the tasks found in text. Text without checklist
// lines is a no-op.
func (c *Controller) ImportMarkdown(text string) (int, error) {
	imported := codec.ImportMarkdown(text)
	if len(imported) == 0 {
		return 0, nil
	}
	for i := range imported {
		imported[i].ID = c.newID()
		imported[i].CreatedAt = c.now().UTC()
	}
	_, err := c.mutate(ReasonImport, OriginLocal, func(cur []task.Task) ([]task.Task, bool, error) {
		return append(imported, cur...), true, nil
	})
	return len(imported), err
}

// ImportBackup applies a JSON backup. Replace swaps the collection; merge
// appends tasks whose IDs are new. A malformed document leaves the
// collection untouched. The count is the number of tasks taken in.
func (c *Controller) ImportBackup(data []byte, mode ImportMode) (int, error) {
	b, err := codec.DecodeBackup(data)
	if err != nil {
		return 0, err
	}
	count := 0
	_, err = c.mutate(ReasonImport, OriginLocal, func(cur []task.Task) ([]task.Task, bool, error) {
		if mode == ImportMerge {
			merged, added := codec.MergeTasks(cur, b.Tasks)
			count = added
			return merged, added > 0, nil
		}
		count = len(b.Tasks)
		return task.Clone(b.Tasks), true, nil
	})
	return count, err
}

// Replace accepts a full collection from outside, such as a file edit or a
// remote snapshot. Duplicate IDs keep their first occurrence.
func (c *Controller) Replace(tasks []task.Task, origin string) error {
	next := make([]task.Task, 0, len(tasks))
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.ID == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		next = append(next, t.Normalize())
	}
	_, err := c.mutate(ReasonReplace, origin, func([]task.Task) ([]task.Task, bool, error) {
		return next, true, nil
	})
	return err
}

// Merge appends tasks whose IDs are not yet present, the same rule the
// backup importer uses.
func (c *Controller) Merge(tasks []task.Task, origin string) (int, error) {
	added := 0
	_, err := c.mutate(ReasonReplace, origin, func(cur []task.Task) ([]task.Task, bool, error) {
		incoming := make([]task.Task, 0, len(tasks))
		for _, t := range tasks {
			if t.ID != "" {
				incoming = append(incoming, t.Normalize())
			}
		}
		var merged []task.Task
		merged, added = codec.MergeTasks(cur, incoming)
		return merged, added > 0, nil
	})
	return added, err
}

func (c *Controller) ExportMarkdown() string {
	return codec.ExportMarkdown(c.Snapshot())
}

func (c *Controller) ExportBackup() ([]byte, error) {
	return codec.ExportBackup(c.Snapshot(), c.now())
}

// ExportCalendar returns the ICS document and the number of events in it.
func (c *Controller) ExportCalendar() (string, int) {
	return codec.ExportCalendar(c.Snapshot(), c.now())
}

func indexOf(tasks []task.Task, prefix string) (int, error) {
	t, err := store.Select(tasks, prefix)
	if err != nil {
		return -1, err
	}
	for i := range tasks {
		if tasks[i].ID == t.ID {
			return i, nil
		}
	}
	return -1, store.ErrNotFound
}
