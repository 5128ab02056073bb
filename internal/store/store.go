// Package store persists the task collection under a root directory.
//
// Layout:
//
//	<root>/tasks.yaml    the whole collection, newest first
//	<root>/config.toml   optional settings
//	<root>/exports/      files written by export commands
package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amirbrooks/medtodo/internal/task"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
	timeNow     = func() time.Time { return time.Now().UTC() }
)

// MatchConflictError provides details when a prefix matches multiple tasks.
// It still satisfies errors.Is(err, ErrConflict).
type MatchConflictError struct {
	Reason  string
	Matches []task.Task
}

func (e *MatchConflictError) Error() string {
	if e == nil || strings.TrimSpace(e.Reason) == "" {
		return "conflict"
	}
	return "conflict: " + e.Reason
}

func (e *MatchConflictError) Is(target error) bool {
	return target == ErrConflict
}

const (
	tasksFile  = "tasks.yaml"
	configFile = "config.toml"
	exportsDir = "exports"
	fileSchema = 1
	filePerm   = 0o644
	dirPerm    = 0o755
	tmpPrefix  = ".tmp-"
)

type Workspace struct {
	Root string
	cfg  Config

	mu       sync.Mutex
	lastHash string
}

// document is the on-disk shape of tasks.yaml.
type document struct {
	Schema  int         `yaml:"schema"`
	SavedAt time.Time   `yaml:"savedAt"`
	Tasks   []task.Task `yaml:"tasks"`
}

// Open resolves root and loads config.toml when present.
func Open(root string) (*Workspace, error) {
	root = expandHome(strings.TrimSpace(root))
	if root == "" {
		return nil, fmt.Errorf("%w: store root is empty", ErrInvalid)
	}
	w := &Workspace{Root: root}
	cfg, err := LoadConfig(w.ConfigPath())
	if err != nil {
		return nil, err
	}
	w.cfg = cfg
	return w, nil
}

func (w *Workspace) Config() Config { return w.cfg }

func (w *Workspace) TasksPath() string { return filepath.Join(w.Root, tasksFile) }

func (w *Workspace) ConfigPath() string { return filepath.Join(w.Root, configFile) }

// ExportDir is the configured export directory, defaulting to <root>/exports.
func (w *Workspace) ExportDir() string {
	if dir := strings.TrimSpace(w.cfg.Export.Dir); dir != "" {
		return expandHome(dir)
	}
	return filepath.Join(w.Root, exportsDir)
}

// Load reads the collection. A missing file is an empty collection.
func (w *Workspace) Load() ([]task.Task, error) {
	b, err := os.ReadFile(w.TasksPath())
	if errors.Is(err, fs.ErrNotExist) {
		return []task.Task{}, nil
	}
	if err != nil {
		return nil, err
	}
	tasks, err := decodeDocument(b)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.lastHash = contentHash(b)
	w.mu.Unlock()
	return tasks, nil
}

func decodeDocument(b []byte) ([]task.Task, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return []task.Task{}, nil
	}
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, tasksFile, err)
	}
	out := make([]task.Task, 0, len(doc.Tasks))
	for _, t := range doc.Tasks {
		out = append(out, t.Normalize())
	}
	return out, nil
}

// Save replaces tasks.yaml with the given collection.
func (w *Workspace) Save(tasks []task.Task) error {
	doc := document{Schema: fileSchema, SavedAt: timeNow(), Tasks: task.Clone(tasks)}
	b, err := yaml.Marshal(&doc)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := atomicWriteFile(w.TasksPath(), b, filePerm); err != nil {
		return err
	}
	w.lastHash = contentHash(b)
	return nil
}

// ownWrite reports whether b is what this workspace last read or wrote.
func (w *Workspace) ownWrite(b []byte) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHash != "" && w.lastHash == contentHash(b)
}

func contentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Select resolves an ID or unique ID prefix, case-insensitively.
func Select(tasks []task.Task, prefix string) (task.Task, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return task.Task{}, fmt.Errorf("%w: id is required", ErrInvalid)
	}
	var hits []task.Task
	for _, t := range tasks {
		id := strings.ToLower(t.ID)
		if id == prefix {
			return t, nil
		}
		if strings.HasPrefix(id, prefix) {
			hits = append(hits, t)
		}
	}
	switch len(hits) {
	case 0:
		return task.Task{}, ErrNotFound
	case 1:
		return hits[0], nil
	default:
		sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
		return task.Task{}, &MatchConflictError{
			Reason:  fmt.Sprintf("prefix %q matches %d tasks", prefix, len(hits)),
			Matches: hits,
		}
	}
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || path == "~" {
		home, _ := os.UserHomeDir()
		if home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// WriteExport writes data under the export directory with a timestamped
// name and returns the path.
func (w *Workspace) WriteExport(base, ext string, data []byte) (string, error) {
	dir := w.ExportDir()
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", err
	}
	ts := timeNow().Format("20060102-150405")
	name := fmt.Sprintf("%s-%s.%s", base, ts, ext)
	path := filepath.Join(dir, name)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			break
		}
		name = fmt.Sprintf("%s-%s-%d.%s", base, ts, i, ext)
		path = filepath.Join(dir, name)
	}
	if err := atomicWriteFile(path, data, filePerm); err != nil {
		return "", err
	}
	return path, nil
}

func atomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf("%s%d", tmpPrefix, timeNow().UnixNano()))
	if err := os.WriteFile(tmp, data, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	// Rename is atomic on same filesystem.
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
