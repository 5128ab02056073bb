package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/amirbrooks/medtodo/internal/task"
)

// BackupVersion is written into every backup document.
const BackupVersion = "1.0"

// ExportDateLayout matches the millisecond UTC stamps of existing backups.
const ExportDateLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	ErrInvalidBackup = errors.New("invalid backup")
	timeNow          = func() time.Time { return time.Now().UTC() }
)

// Backup is the JSON backup envelope.
type Backup struct {
	Tasks      []task.Task `json:"tasks"`
	ExportDate string      `json:"exportDate"`
	Version    string      `json:"version"`
}

// ExportBackup wraps the whole collection in a backup envelope.
func ExportBackup(tasks []task.Task, now time.Time) ([]byte, error) {
	doc := Backup{
		Tasks:      task.Clone(tasks),
		ExportDate: now.UTC().Format(ExportDateLayout),
		Version:    BackupVersion,
	}
	return json.MarshalIndent(doc, "", "  ")
}

const backupSchemaURL = "medtodo://backup.schema.json"

const backupSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["tasks"],
  "properties": {
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": ["string", "null"]},
          "title": {"type": ["string", "null"]},
          "notes": {"type": ["string", "null"]},
          "priority": {"type": ["string", "null"]},
          "category": {"type": ["string", "null"]},
          "tag": {"type": ["string", "null"]},
          "dueDate": {"type": ["string", "null"]},
          "dueTime": {"type": ["string", "null"]},
          "recurrence": {"type": ["string", "null"]},
          "completed": {"type": "boolean"},
          "createdAt": {"type": ["string", "null"]}
        }
      }
    },
    "exportDate": {"type": "string"},
    "version": {"type": "string"}
  }
}`

var backupSchema = mustCompileBackupSchema()

func mustCompileBackupSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(backupSchemaURL, strings.NewReader(backupSchemaJSON)); err != nil {
		panic(fmt.Sprintf("backup schema: %v", err))
	}
	schema, err := compiler.Compile(backupSchemaURL)
	if err != nil {
		panic(fmt.Sprintf("backup schema: %v", err))
	}
	return schema
}

// wireTask is the lenient on-the-wire shape; nulls and bad timestamps are
// tolerated and normalized afterwards.
type wireTask struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Notes      *string `json:"notes"`
	Priority   *string `json:"priority"`
	Category   *string `json:"category"`
	Tag        *string `json:"tag"`
	DueDate    *string `json:"dueDate"`
	DueTime    *string `json:"dueTime"`
	Recurrence *string `json:"recurrence"`
	Completed  bool    `json:"completed"`
	CreatedAt  *string `json:"createdAt"`
}

type wireBackup struct {
	Tasks      []wireTask `json:"tasks"`
	ExportDate string     `json:"exportDate"`
	Version    string     `json:"version"`
}

// DecodeBackup parses and validates a backup document. Any syntax or shape
// problem is reported as ErrInvalidBackup. Incoming tasks are normalized:
// missing IDs are generated, empty titles become "Untitled" and duplicate
// IDs keep their first occurrence.
func DecodeBackup(data []byte) (Backup, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Backup{}, fmt.Errorf("%w: empty document", ErrInvalidBackup)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Backup{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if err := backupSchema.Validate(doc); err != nil {
		return Backup{}, fmt.Errorf("%w: %s", ErrInvalidBackup, schemaMessage(err))
	}
	var wire wireBackup
	if err := json.Unmarshal(data, &wire); err != nil {
		return Backup{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}

	out := Backup{
		Tasks:      make([]task.Task, 0, len(wire.Tasks)),
		ExportDate: wire.ExportDate,
		Version:    wire.Version,
	}
	seen := map[string]bool{}
	for _, w := range wire.Tasks {
		t := w.toTask()
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out.Tasks = append(out.Tasks, t)
	}
	return out, nil
}

func (w wireTask) toTask() task.Task {
	t := task.Task{
		ID:         strings.TrimSpace(w.ID),
		Title:      w.Title,
		Notes:      deref(w.Notes),
		Priority:   task.Priority(deref(w.Priority)),
		Category:   task.Category(deref(w.Category)),
		Tag:        deref(w.Tag),
		DueDate:    strings.TrimSpace(deref(w.DueDate)),
		DueTime:    strings.TrimSpace(deref(w.DueTime)),
		Recurrence: task.Recurrence(deref(w.Recurrence)),
		Completed:  w.Completed,
	}.Normalize()
	if t.ID == "" {
		t.ID = task.NewID()
	}
	if t.Title == "" {
		t.Title = UntitledTitle
	}
	if created, err := time.Parse(time.RFC3339Nano, deref(w.CreatedAt)); err == nil {
		t.CreatedAt = created.UTC()
	} else {
		t.CreatedAt = timeNow()
	}
	return t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// schemaMessage reports the first leaf cause of a validation failure.
func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, ve.Message)
}

// MergeTasks keeps every existing task and appends the incoming tasks whose
// IDs are not already present.
func MergeTasks(existing, incoming []task.Task) (merged []task.Task, added int) {
	merged = task.Clone(existing)
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[t.ID] = true
	}
	for _, t := range incoming {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		merged = append(merged, t)
		added++
	}
	return merged, added
}
