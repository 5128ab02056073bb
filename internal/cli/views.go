package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amirbrooks/medtodo/internal/schedule"
	"github.com/amirbrooks/medtodo/internal/view"
)

type viewFlags struct {
	group  string
	totals bool
	format string
	days   int
}

func (vf *viewFlags) register(cmd *cobra.Command, withDays bool) {
	f := cmd.Flags()
	f.StringVar(&vf.group, "group", "", "Group by category|priority|none")
	f.BoolVar(&vf.totals, "totals", false, "Show per-group totals")
	f.StringVar(&vf.format, "format", "", "text|chat")
	if withDays {
		f.IntVar(&vf.days, "days", 0, "Number of days, starting today")
	}
}

// options merges flags over the [views] config section.
func (vf *viewFlags) options(s *session) (view.RenderOptions, error) {
	cfg := s.ws.Config().Views
	opts := view.RenderOptions{
		GroupBy:    cfg.GroupBy,
		ShowTotals: cfg.ShowTotals || vf.totals,
		Days:       cfg.WeekDays,
		Format:     cfg.Format,
	}
	if g := strings.ToLower(strings.TrimSpace(vf.group)); g != "" {
		if g != "none" && view.NormalizeGroupBy(g) == "" {
			return opts, usagef("invalid --group %q (use category|priority|none)", vf.group)
		}
		opts.GroupBy = view.NormalizeGroupBy(g)
	}
	if vf.days < 0 {
		return opts, usagef("--days must be positive")
	}
	if vf.days > 0 {
		opts.Days = vf.days
	}
	if vf.format != "" {
		opts.Format = vf.format
	}
	return opts, nil
}

func newTodayCmd(s *session) *cobra.Command {
	var vf viewFlags
	cmd := &cobra.Command{
		Use:   "today",
		Short: "Open tasks due today, then overdue ones",
		Args:  exactArgs(0, "today [--group g] [--totals] [--format text|chat]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := vf.options(s)
			if err != nil {
				return err
			}
			now := timeNow()
			tasks := s.ctrl.Snapshot()
			if s.gf.JSON {
				return s.emitJSON("today", map[string]any{
					"date":    schedule.FormatDate(schedule.Midnight(now)),
					"due":     view.Today(tasks, now),
					"overdue": view.Overdue(tasks, now),
				})
			}
			fmt.Fprintln(s.out, view.RenderToday(tasks, now, opts))
			return nil
		},
	}
	vf.register(cmd, false)
	return cmd
}

func newWeekCmd(s *session) *cobra.Command {
	var vf viewFlags
	cmd := &cobra.Command{
		Use:     "week",
		Aliases: []string{"agenda", "upcoming"},
		Short:   "Open tasks for the coming days, one section per day",
		Args:    exactArgs(0, "week [--days N] [--group g] [--totals] [--format text|chat]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := vf.options(s)
			if err != nil {
				return err
			}
			now := timeNow()
			tasks := s.ctrl.Snapshot()
			if s.gf.JSON {
				return s.emitJSON("week", map[string]any{
					"days":    view.Week(tasks, now, opts.Days),
					"overdue": view.Overdue(tasks, now),
				})
			}
			fmt.Fprintln(s.out, view.RenderWeek(tasks, now, opts))
			return nil
		},
	}
	vf.register(cmd, true)
	return cmd
}

func newCalendarCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "calendar",
		Short: "Every dated task bucketed by due date",
		Args:  exactArgs(0, "calendar"),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks := s.ctrl.Snapshot()
			if s.gf.JSON {
				return s.emitJSON("calendar", map[string]any{"days": view.Calendar(tasks)})
			}
			if s.gf.Plain {
				fmt.Fprintln(s.out, "DATE\tDAY\tCOUNT\tSUMMARY")
				for _, d := range view.Calendar(tasks) {
					fmt.Fprintf(s.out, "%s\t%s\t%d\t%s\n", d.Date, d.Weekday(), len(d.Tasks), d.Summary())
				}
				return nil
			}
			fmt.Fprintln(s.out, view.RenderCalendar(tasks))
			return nil
		},
	}
}
