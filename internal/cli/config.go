package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newConfigCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Aliases: []string{"cfg"},
		Short:   "Inspect settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  exactArgs(0, "config show"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := s.ws.Config()
			cfgPath := s.ws.ConfigPath()
			_, err := os.Stat(cfgPath)
			exists := !errors.Is(err, fs.ErrNotExist)

			if s.gf.JSON {
				return s.emitJSON("config", map[string]any{
					"root":        s.ws.Root,
					"config_path": cfgPath,
					"exists":      exists,
					"tasks_path":  s.ws.TasksPath(),
					"export_dir":  s.ws.ExportDir(),
					"config":      cfg,
				})
			}
			if s.gf.Plain {
				w := tabwriter.NewWriter(s.out, 2, 4, 2, ' ', 0)
				fmt.Fprintln(w, "KEY\tVALUE")
				fmt.Fprintf(w, "root\t%s\n", s.ws.Root)
				fmt.Fprintf(w, "config_path\t%s\n", cfgPath)
				fmt.Fprintf(w, "exists\t%t\n", exists)
				fmt.Fprintf(w, "log.level\t%s\n", cfg.Log.Level)
				fmt.Fprintf(w, "log.format\t%s\n", cfg.Log.Format)
				fmt.Fprintf(w, "views.week_days\t%d\n", cfg.Views.WeekDays)
				fmt.Fprintf(w, "views.default_filter\t%s\n", cfg.Views.DefaultFilter)
				fmt.Fprintf(w, "views.group_by\t%s\n", cfg.Views.GroupBy)
				fmt.Fprintf(w, "views.show_totals\t%t\n", cfg.Views.ShowTotals)
				fmt.Fprintf(w, "views.format\t%s\n", cfg.Views.Format)
				fmt.Fprintf(w, "sync.redis_addr\t%s\n", cfg.Sync.RedisAddr)
				fmt.Fprintf(w, "sync.key\t%s\n", cfg.Sync.Key)
				fmt.Fprintf(w, "sync.channel\t%s\n", cfg.Sync.Channel)
				fmt.Fprintf(w, "export.dir\t%s\n", s.ws.ExportDir())
				return w.Flush()
			}

			fmt.Fprintln(s.out, "Config")
			fmt.Fprintln(s.out, "  Root:", s.ws.Root)
			if exists {
				fmt.Fprintln(s.out, "  Config file:", cfgPath)
			} else {
				fmt.Fprintln(s.out, "  Config file:", cfgPath, "(not found; defaults shown)")
			}
			fmt.Fprintln(s.out, "  Tasks file:", s.ws.TasksPath())
			fmt.Fprintln(s.out, "  Export dir:", s.ws.ExportDir())
			fmt.Fprintln(s.out)
			body, err := cfg.Encode()
			if err != nil {
				return err
			}
			fmt.Fprint(s.out, body)
			return nil
		},
	})
	return cmd
}
