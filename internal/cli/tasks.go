package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/amirbrooks/medtodo/internal/app"
	"github.com/amirbrooks/medtodo/internal/schedule"
	"github.com/amirbrooks/medtodo/internal/store"
	"github.com/amirbrooks/medtodo/internal/task"
	"github.com/amirbrooks/medtodo/internal/view"
)

func newAddCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>...",
		Short: "Quick-capture a task from free text",
		Example: `  medtodo add "Team sync tomorrow at 2pm !high #meeting"
  medtodo add Review grant in 3 days category:research notes: check budget`,
		Args: minArgs(1, `add "<text>"`),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok, err := s.ctrl.QuickAdd(strings.Join(args, " "))
			if !ok {
				s.printf("Nothing added: no title left after parsing.\n")
				return nil
			}
			if err != nil {
				return err
			}
			return s.reportTask("added", "Added", t)
		},
	}
}

func newNewCmd(s *session) *cobra.Command {
	var (
		in       task.Input
		due      string
		at       string
		template string
	)
	cmd := &cobra.Command{
		Use:   "new [title]...",
		Short: "Create a task from explicit fields or a template",
		Example: `  medtodo new "Renew license" --due 2024-06-01 --priority high --category home
  medtodo new --template patient-referral --due tomorrow`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = strings.Join(args, " ")
			var err error
			if in.DueDate, err = resolveDue(due); err != nil {
				return err
			}
			if in.DueTime, err = resolveClock(at); err != nil {
				return err
			}

			var (
				t  task.Task
				ok bool
			)
			if template != "" {
				t, ok, err = s.ctrl.AddFromTemplate(template, in)
			} else {
				if strings.TrimSpace(in.Title) == "" {
					return usagef(`usage: medtodo new "<title>" [flags] (or --template <name>)`)
				}
				t, ok, err = s.ctrl.Add(in)
			}
			if !ok {
				return err
			}
			if err != nil {
				return err
			}
			return s.reportTask("added", "Added", t)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Notes, "notes", "", "Notes")
	f.StringVarP(&in.Priority, "priority", "p", "", "low|medium|high")
	f.StringVarP(&in.Category, "category", "c", "", "work|home|research|clinical|teaching")
	f.StringVar(&in.Tag, "tag", "", "Tag, e.g. #grant")
	f.StringVar(&due, "due", "", "Due date: YYYY-MM-DD, today, tomorrow, friday, in 3 days ...")
	f.StringVar(&at, "at", "", "Due time: 14:30, 2pm ...")
	f.StringVar(&in.Recurrence, "repeat", "", "daily|weekly|monthly")
	f.StringVarP(&template, "template", "t", "", "Start from a template (see 'medtodo templates')")
	return cmd
}

// resolveDue accepts an ISO date or any relative expression the capture
// parser understands.
func resolveDue(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if d, ok := schedule.ParseDate(s); ok {
		return schedule.FormatDate(d), nil
	}
	if date, _, ok := schedule.ResolveRelativeDate(s, timeNow()); ok {
		return date, nil
	}
	return "", fmt.Errorf("%w: cannot read due date %q", store.ErrInvalid, s)
}

func resolveClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	c, _, ok := schedule.ResolveClockTime(s)
	if !ok {
		return "", fmt.Errorf("%w: cannot read time %q", store.ErrInvalid, s)
	}
	return c.String(), nil
}

func newParseCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <text>...",
		Short: "Show how free text would be captured, without saving",
		Args:  minArgs(1, `parse "<text>"`),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := s.ctrl.Parse(strings.Join(args, " "))
			if s.gf.JSON {
				return s.emitJSON("parse", r)
			}
			w := tabwriter.NewWriter(s.out, 2, 4, 2, ' ', 0)
			fmt.Fprintf(w, "title\t%s\n", r.Title)
			fmt.Fprintf(w, "priority\t%s\n", r.Priority)
			fmt.Fprintf(w, "category\t%s\n", r.Category)
			fmt.Fprintf(w, "tag\t%s\n", dash(r.Tag))
			fmt.Fprintf(w, "due\t%s\n", dash(strings.TrimSpace(r.DueDate+" "+r.DueTime)))
			fmt.Fprintf(w, "notes\t%s\n", dash(r.Notes))
			return w.Flush()
		},
	}
}

func newListCmd(s *session) *cobra.Command {
	var (
		status   string
		date     string
		query    string
		category string
	)
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List tasks in display order",
		Args:    exactArgs(0, "ls [--status s] [--date d] [--search q] [--category c]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("status") {
				status = s.ws.Config().Views.DefaultFilter
			}
			filter := view.Filter{
				Date:   strings.TrimSpace(date),
				Query:  query,
				Status: view.ParseStatus(status),
			}
			if strings.TrimSpace(category) != "" {
				filter.Category = task.NormalizeCategory(category)
			}
			tasks := view.Sort(filter.Apply(s.ctrl.Snapshot()))

			if s.gf.JSON {
				return s.emitJSON("tasks", map[string]any{"tasks": tasks})
			}
			if s.gf.Plain {
				fmt.Fprintln(s.out, "ID\tST\tPRI\tCATEGORY\tDUE\tTITLE\tTAG")
				for _, t := range tasks {
					fmt.Fprintf(s.out, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						t.ID, statusAbbrev(t), t.PriorityAbbrev(), t.Category, dash(t.DueLabel()), t.Title, t.Tag)
				}
				return nil
			}
			if len(tasks) == 0 {
				s.printf("No tasks.\n")
				return nil
			}
			short := shortIDs(tasks)
			w := tabwriter.NewWriter(s.out, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tST\tPRI\tCATEGORY\tDUE\tTITLE")
			for _, t := range tasks {
				title := t.Title
				if t.Tag != "" {
					title += " " + t.Tag
				}
				if t.Recurrence != task.RecurrenceNone {
					title += " ↻" + string(t.Recurrence)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					short[t.ID], statusAbbrev(t), t.PriorityAbbrev(), t.Category, dash(t.DueLabel()), title)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(s.out)
			fmt.Fprintln(s.out, view.RenderCounts(tasks))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&status, "status", "all", "all|active|completed")
	f.StringVar(&date, "date", "", "Only tasks due on YYYY-MM-DD")
	f.StringVarP(&query, "search", "s", "", "Match title, notes, tag or category")
	f.StringVarP(&category, "category", "c", "", "Only this category")
	return cmd
}

func statusAbbrev(t task.Task) string {
	if t.Completed {
		return "x"
	}
	return "-"
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// shortIDs returns the shortest prefix of each ID, at least 8 characters,
// that is unique within tasks. IDs minted in the same instant share a long
// timestamp prefix, so a fixed width is not enough.
func shortIDs(tasks []task.Task) map[string]string {
	const minLen = 8
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	out := make(map[string]string, len(ids))
	for i, id := range ids {
		n := minLen
		if i > 0 {
			n = max(n, commonPrefix(id, ids[i-1])+1)
		}
		if i+1 < len(ids) {
			n = max(n, commonPrefix(id, ids[i+1])+1)
		}
		out[id] = id[:min(n, len(id))]
	}
	return out
}

func commonPrefix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func newDoneCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id-or-prefix>",
		Short: "Complete a task; recurring tasks get their next instance",
		Args:  exactArgs(1, "done <id-or-prefix>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, next, err := s.ctrl.Complete(args[0])
			if t.ID == "" {
				return err
			}
			if s.gf.JSON {
				if jerr := s.emitJSON("done", map[string]any{"task": t, "next": next}); jerr != nil {
					return jerr
				}
				return err
			}
			s.printf("Completed %s: %s\n", t.IDShort(8), t.Title)
			if next != nil {
				s.printf("Next %s: %s (due %s)\n", next.Recurrence, next.IDShort(8), next.DueLabel())
			}
			return err
		},
	}
}

func newUndoCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <id-or-prefix>",
		Short: "Mark a completed task active again",
		Args:  exactArgs(1, "undo <id-or-prefix>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, _, err := s.ctrl.SetCompleted(args[0], false)
			if t.ID == "" {
				return err
			}
			if rerr := s.reportTask("task", "Reopened", t); rerr != nil {
				return rerr
			}
			return err
		},
	}
}

func newEditCmd(s *session) *cobra.Command {
	var (
		title, notes, priority, category, tag, due, at, repeat string
	)
	cmd := &cobra.Command{
		Use:   "edit <id-or-prefix>",
		Short: "Change fields of a task",
		Example: `  medtodo edit 01hw --due friday --at 9am
  medtodo edit 01hw --due "" --repeat none`,
		Args: exactArgs(1, "edit <id-or-prefix> [--title ..] [--due ..] ..."),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed
			var p app.Patch
			set := func(name string, v string) *string {
				if !changed(name) {
					return nil
				}
				return &v
			}
			p.Title = set("title", title)
			p.Notes = set("notes", notes)
			p.Priority = set("priority", priority)
			p.Category = set("category", category)
			p.Tag = set("tag", tag)
			p.Recurrence = set("repeat", repeat)
			if changed("due") {
				d, err := resolveDue(due)
				if err != nil {
					return err
				}
				p.DueDate = &d
			}
			if changed("at") {
				c, err := resolveClock(at)
				if err != nil {
					return err
				}
				p.DueTime = &c
			}
			if p.Empty() {
				return usagef("edit: nothing to change")
			}
			t, err := s.ctrl.Update(args[0], p)
			if t.ID == "" {
				return err
			}
			if rerr := s.reportTask("task", "Updated", t); rerr != nil {
				return rerr
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "New title")
	f.StringVar(&notes, "notes", "", "New notes")
	f.StringVarP(&priority, "priority", "p", "", "low|medium|high")
	f.StringVarP(&category, "category", "c", "", "work|home|research|clinical|teaching")
	f.StringVar(&tag, "tag", "", "Tag (empty clears)")
	f.StringVar(&due, "due", "", "Due date (empty clears)")
	f.StringVar(&at, "at", "", "Due time (empty clears)")
	f.StringVar(&repeat, "repeat", "", "daily|weekly|monthly|none")
	return cmd
}

func newRemoveCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id-or-prefix>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    exactArgs(1, "rm <id-or-prefix>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := s.ctrl.Delete(args[0])
			if t.ID == "" {
				return err
			}
			s.printf("Deleted %s: %s\n", t.IDShort(8), t.Title)
			return err
		},
	}
}

func newClearCompletedCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Delete every completed task",
		Args:  exactArgs(0, "clear-completed"),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := s.ctrl.ClearCompleted()
			if n == 0 && err == nil {
				s.printf("No completed tasks.\n")
				return nil
			}
			s.printf("Removed %d completed task%s.\n", n, plural(n))
			return err
		},
	}
}

func newTemplatesCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List task templates for 'medtodo new --template'",
		Args:  exactArgs(0, "templates"),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := task.TemplateNames()
			if s.gf.JSON {
				return s.emitJSON("templates", map[string]any{"templates": task.Templates})
			}
			var w io.Writer = s.out
			tw := tabwriter.NewWriter(s.out, 2, 4, 2, ' ', 0)
			if !s.gf.Plain {
				w = tw
			}
			fmt.Fprintln(w, "NAME\tTITLE\tPRI\tCATEGORY\tTAG")
			for _, name := range names {
				in := task.Templates[name]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, in.Title, in.Priority, in.Category, in.Tag)
			}
			return tw.Flush()
		},
	}
}

// reportTask prints a one-line confirmation, or the task as JSON.
func (s *session) reportTask(jsonBase, verb string, t task.Task) error {
	if s.gf.JSON {
		return s.emitJSON(jsonBase, map[string]any{"task": t})
	}
	line := fmt.Sprintf("%s %s: %s", verb, t.IDShort(8), t.Title)
	if due := t.DueLabel(); due != "" {
		line += " (due " + due + ")"
	}
	s.printf("%s [%s, %s]\n", line, t.Priority, t.Category)
	return nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
