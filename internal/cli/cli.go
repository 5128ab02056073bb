package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/amirbrooks/medtodo/internal/app"
	"github.com/amirbrooks/medtodo/internal/codec"
	"github.com/amirbrooks/medtodo/internal/store"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitConflict = 4
	ExitInternal = 10
)

const rootEnv = "MEDTODO_ROOT"

// timeNow is the clock for every command; tests pin it.
var timeNow = time.Now

type GlobalFlags struct {
	Root       string
	JSON       bool
	StdoutJSON bool
	Plain      bool
	Quiet      bool
	Verbose    bool
}

// session is the state shared by one command invocation.
type session struct {
	gf     GlobalFlags
	out    io.Writer
	errOut io.Writer
	in     io.Reader

	ws     *store.Workspace
	ctrl   *app.Controller
	logger *log.Logger

	// started is set once argument validation has passed.
	started bool
}

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func Run(args []string) int {
	return run(args, os.Stdin, os.Stdout, os.Stderr)
}

func run(args []string, in io.Reader, out, errOut io.Writer) int {
	s := &session{in: in, out: out, errOut: errOut}
	root := newRootCmd(s)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.Execute()
	if err == nil {
		return ExitOK
	}
	code := exitCode(err, s.started)
	fmt.Fprintln(errOut, "medtodo:", describe(err))
	if code == ExitUsage && !s.started {
		fmt.Fprintln(errOut, "Run 'medtodo --help' for usage.")
	}
	return code
}

func exitCode(err error, started bool) int {
	var ue *usageError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, store.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, store.ErrConflict):
		return ExitConflict
	case errors.As(err, &ue), errors.Is(err, store.ErrInvalid), errors.Is(err, codec.ErrInvalidBackup):
		return ExitUsage
	case !started:
		// cobra rejected the flags or arguments before any command ran.
		return ExitUsage
	default:
		return ExitInternal
	}
}

// describe adds the candidate IDs to ambiguous-prefix errors.
func describe(err error) string {
	var mc *store.MatchConflictError
	if !errors.As(err, &mc) || len(mc.Matches) == 0 {
		return err.Error()
	}
	ids := make([]string, 0, len(mc.Matches))
	for _, t := range mc.Matches {
		ids = append(ids, fmt.Sprintf("%s (%s)", t.ID, t.Title))
	}
	return err.Error() + "\n  candidates: " + strings.Join(ids, "\n              ")
}

func newRootCmd(s *session) *cobra.Command {
	root := &cobra.Command{
		Use:   "medtodo",
		Short: "Quick-capture task list for clinical, research and home work",
		Long: `medtodo keeps a single task list in <root>/tasks.yaml.

Capture tasks in free text ("Ward round tomorrow at 8am !high #rounds"),
review them with today/week/calendar, and exchange them as markdown
checklists, JSON backups or iCalendar files.

Store root: --root, else $MEDTODO_ROOT, else ~/.medtodo.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s.started = true
			return s.open()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&s.gf.Root, "root", "", "Store root (default: ~/.medtodo or "+rootEnv+")")
	pf.BoolVar(&s.gf.JSON, "json", false, "Write JSON output to the export directory")
	pf.BoolVar(&s.gf.StdoutJSON, "stdout-json", false, "With --json, print JSON to stdout instead")
	pf.BoolVar(&s.gf.Plain, "plain", false, "TSV output")
	pf.BoolVarP(&s.gf.Quiet, "quiet", "q", false, "Suppress confirmations")
	pf.BoolVarP(&s.gf.Verbose, "verbose", "v", false, "Debug logging")

	root.AddCommand(
		newAddCmd(s),
		newNewCmd(s),
		newParseCmd(s),
		newListCmd(s),
		newTodayCmd(s),
		newWeekCmd(s),
		newCalendarCmd(s),
		newDoneCmd(s),
		newUndoCmd(s),
		newEditCmd(s),
		newRemoveCmd(s),
		newClearCompletedCmd(s),
		newExportCmd(s),
		newImportCmd(s),
		newSyncCmd(s),
		newTemplatesCmd(s),
		newConfigCmd(s),
	)
	return root
}

func resolveRoot(flagRoot string) string {
	if strings.TrimSpace(flagRoot) != "" {
		return flagRoot
	}
	if env := os.Getenv(rootEnv); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return ".medtodo"
	}
	return filepath.Join(home, ".medtodo")
}

func (s *session) open() error {
	if s.gf.StdoutJSON && !s.gf.JSON {
		return usagef("--stdout-json requires --json")
	}
	if s.gf.JSON && s.gf.Plain {
		return usagef("--json and --plain are mutually exclusive")
	}
	ws, err := store.Open(resolveRoot(s.gf.Root))
	if err != nil {
		return err
	}
	s.ws = ws
	s.logger = newLogger(ws.Config().Log, s.gf, s.errOut)

	ctrl, err := app.New(ws,
		app.WithLogger(log.NewEntry(s.logger)),
		app.WithClock(timeNow),
	)
	if err != nil {
		return err
	}
	s.ctrl = ctrl
	return nil
}

func newLogger(cfg store.LogConfig, gf GlobalFlags, w io.Writer) *log.Logger {
	logger := log.New()
	logger.SetOutput(w)
	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	switch {
	case gf.Verbose:
		level = log.DebugLevel
	case gf.Quiet && level > log.ErrorLevel:
		level = log.ErrorLevel
	}
	logger.SetLevel(level)
	return logger
}

// printf writes a confirmation unless --quiet is set.
func (s *session) printf(format string, args ...any) {
	if s.gf.Quiet {
		return
	}
	fmt.Fprintf(s.out, format, args...)
}

// emitJSON writes payload to the export directory, or to stdout with
// --stdout-json.
func (s *session) emitJSON(base string, payload any) error {
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	if s.gf.StdoutJSON {
		_, err := fmt.Fprintln(s.out, string(b))
		return err
	}
	path, err := s.ws.WriteExport(base, "json", append(b, '\n'))
	if err != nil {
		return err
	}
	s.printf("Wrote JSON to: %s\n", path)
	return nil
}

func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("usage: medtodo %s", usage)
		}
		return nil
	}
}

func minArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return usagef("usage: medtodo %s", usage)
		}
		return nil
	}
}
