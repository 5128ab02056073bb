package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amirbrooks/medtodo/internal/app"
	"github.com/amirbrooks/medtodo/internal/store"
)

func newExportCmd(s *session) *cobra.Command {
	var toStdout bool
	cmd := &cobra.Command{
		Use:       "export <md|json|ics>",
		Short:     "Export the task list as a markdown checklist, JSON backup or calendar",
		ValidArgs: []string{"md", "json", "ics"},
		Args:      exactArgs(1, "export <md|json|ics> [--stdout]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data  []byte
				ext   string
				base  string
				count int
			)
			switch strings.ToLower(args[0]) {
			case "md", "markdown":
				md := s.ctrl.ExportMarkdown()
				data, ext, base, count = []byte(md+"\n"), "md", "medtodo-tasks", len(s.ctrl.Snapshot())
			case "json", "backup":
				b, err := s.ctrl.ExportBackup()
				if err != nil {
					return err
				}
				data, ext, base, count = append(b, '\n'), "json", "medtodo-backup", len(s.ctrl.Snapshot())
			case "ics", "ical", "calendar":
				doc, n := s.ctrl.ExportCalendar()
				data, ext, base, count = []byte(doc), "ics", "medtodo-calendar", n
			default:
				return usagef("export: unknown format %q (use md|json|ics)", args[0])
			}
			if count == 0 {
				s.printf("Nothing to export.\n")
				return nil
			}
			if toStdout {
				_, err := s.out.Write(data)
				return err
			}
			path, err := s.ws.WriteExport(base, ext, data)
			if err != nil {
				return err
			}
			s.printf("Exported %d task%s to: %s\n", count, plural(count), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "Print instead of writing to the export directory")
	return cmd
}

func newImportCmd(s *session) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "import <md|json> <file|->",
		Short: "Import a markdown checklist or a JSON backup",
		Long: `Import tasks from a file, or from stdin with "-".

Markdown checklist lines are added in front of the existing tasks.
A JSON backup replaces the task list, or with --mode merge adds only tasks
whose IDs are new. A malformed backup changes nothing.`,
		Args: exactArgs(2, "import <md|json> <file|-> [--mode replace|merge]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(s.in, args[1])
			if err != nil {
				return err
			}
			switch strings.ToLower(args[0]) {
			case "md", "markdown":
				n, err := s.ctrl.ImportMarkdown(string(data))
				if n == 0 && err == nil {
					s.printf("No checklist lines found.\n")
					return nil
				}
				s.printf("Imported %d task%s.\n", n, plural(n))
				return err
			case "json", "backup":
				m, err := app.ParseImportMode(mode)
				if err != nil {
					return err
				}
				n, err := s.ctrl.ImportBackup(data, m)
				if n == 0 && err != nil {
					return err
				}
				if m == app.ImportMerge {
					s.printf("Merged %d new task%s.\n", n, plural(n))
				} else {
					s.printf("Restored %d task%s from backup.\n", n, plural(n))
				}
				return err
			default:
				return usagef("import: unknown format %q (use md|json)", args[0])
			}
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "replace", "JSON import mode: replace|merge")
	return cmd
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	b, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}
