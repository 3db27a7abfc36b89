package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskKind string

const (
	TaskKindAlign   TaskKind = "align"
	TaskKindTrain   TaskKind = "train"
	TaskKindDraft   TaskKind = "draft"
	TaskKindExtract TaskKind = "extract"
)

func (k TaskKind) Valid() bool {
	switch k {
	case TaskKindAlign, TaskKindTrain, TaskKindDraft, TaskKindExtract:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
	// TaskStatusUnknown marks tasks reconstructed from disk without evidence of completion.
	TaskStatusUnknown TaskStatus = "unknown"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusQueued, TaskStatusRunning, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled, TaskStatusUnknown:
		return true
	}
	return false
}

func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// TaskOrigin records who owns a task row: the API or the experiments scan.
type TaskOrigin string

const (
	TaskOriginAPI  TaskOrigin = "api"
	TaskOriginScan TaskOrigin = "scan"
)

type Task struct {
	ID        string     `gorm:"column:id;primaryKey" json:"id"`
	Kind      TaskKind   `gorm:"column:kind;not null;index" json:"kind"`
	Status    TaskStatus `gorm:"column:status;not null;index" json:"status"`
	CreatedAt time.Time  `gorm:"column:created_at;not null;index" json:"created_at"`
	StartedAt *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	EndedAt   *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
	Error     string     `gorm:"column:error" json:"error,omitempty"`
	Origin    TaskOrigin `gorm:"column:origin;not null;default:api;index" json:"origin"`

	// Lookup columns derived from Params on save.
	ProjectRef     string `gorm:"column:project_ref;index" json:"-"`
	ScriptureRef   string `gorm:"column:scripture_ref;index" json:"-"`
	ExperimentName string `gorm:"column:experiment_name;index" json:"-"`

	RawParams datatypes.JSON `gorm:"column:parameters" json:"-"`
	Params    TaskParams     `gorm:"-" json:"parameters"`
}

func (Task) TableName() string { return "tasks" }

func (t *Task) BeforeSave(tx *gorm.DB) error {
	return t.EncodeParams()
}

func (t *Task) AfterFind(tx *gorm.DB) error {
	return t.DecodeParams()
}

// EncodeParams writes Params into RawParams and refreshes the lookup columns.
func (t *Task) EncodeParams() error {
	if t.Params == nil {
		return fmt.Errorf("task %s: %w", t.ID, ErrMissingParams)
	}
	raw, err := EncodeTaskParams(t.Kind, t.Params)
	if err != nil {
		return fmt.Errorf("task %s: %w", t.ID, err)
	}
	t.RawParams = raw
	t.ProjectRef, t.ScriptureRef, t.ExperimentName = taskRefs(t.Params)
	return nil
}

// DecodeParams rebuilds Params from RawParams according to Kind.
func (t *Task) DecodeParams() error {
	if len(t.RawParams) == 0 {
		return nil
	}
	p, err := DecodeTaskParams(t.Kind, t.RawParams)
	if err != nil {
		return fmt.Errorf("task %s: %w", t.ID, err)
	}
	t.Params = p
	return nil
}

type taskJSON struct {
	ID        string          `json:"id"`
	Kind      TaskKind        `json:"kind"`
	Status    TaskStatus      `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	StartedAt *time.Time      `json:"started_at,omitempty"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Error     string          `json:"error,omitempty"`
	Origin    TaskOrigin      `json:"origin"`
	Params    json.RawMessage `json:"parameters"`
}

// UnmarshalJSON reads kind first so the parameters decode into the matching variant.
func (t *Task) UnmarshalJSON(b []byte) error {
	var in taskJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*t = Task{
		ID:        in.ID,
		Kind:      in.Kind,
		Status:    in.Status,
		CreatedAt: in.CreatedAt,
		StartedAt: in.StartedAt,
		EndedAt:   in.EndedAt,
		Error:     in.Error,
		Origin:    in.Origin,
	}
	if len(in.Params) == 0 || string(in.Params) == "null" {
		return nil
	}
	p, err := DecodeTaskParams(in.Kind, in.Params)
	if err != nil {
		return err
	}
	t.Params = p
	return nil
}

// ExperimentRef returns the experiment an align or train task runs in.
func (t *Task) ExperimentRef() string {
	_, _, exp := taskRefs(t.Params)
	return exp
}

// TargetsScripture reports whether an align or train task targets the given corpus.
func (t *Task) TargetsScripture(scriptureID string) bool {
	switch p := t.Params.(type) {
	case *AlignParams:
		return p.TargetScriptureFile == scriptureID
	case *TrainParams:
		return p.TargetScriptureFile == scriptureID
	}
	return false
}
