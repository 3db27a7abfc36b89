package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
)

var (
	ErrUnknownTaskKind    = errors.New("unknown task kind")
	ErrParamsKindMismatch = errors.New("task parameters do not match task kind")
	ErrMissingParams      = errors.New("task parameters missing")
)

// TaskParams is the per-kind parameter payload of a Task.
type TaskParams interface {
	Kind() TaskKind
}

type AlignParams struct {
	ProjectID            string              `json:"project_id"`
	TargetScriptureFile  string              `json:"target_scripture_file"`
	SourceScriptureFiles []string            `json:"source_scripture_files"`
	ExperimentName       string              `json:"experiment_name,omitempty"`
	Results              []map[string]string `json:"results,omitempty"`
}

func (*AlignParams) Kind() TaskKind { return TaskKindAlign }

type TrainParams struct {
	ProjectID            string                       `json:"project_id"`
	TargetScriptureFile  string                       `json:"target_scripture_file"`
	SourceScriptureFiles []string                     `json:"source_scripture_files"`
	TrainingCorpus       string                       `json:"training_corpus,omitempty"`
	LangCodes            map[string]string            `json:"lang_codes"`
	ExperimentName       string                       `json:"experiment_name,omitempty"`
	Results              map[string]map[string]string `json:"results,omitempty"`
}

func (*TrainParams) Kind() TaskKind { return TaskKindTrain }

type DraftParams struct {
	TrainTaskID      string   `json:"train_task_id"`
	SourceProjectID  string   `json:"source_project_id"`
	BookNames        []string `json:"book_names"`
	SourceScriptCode string   `json:"source_script_code"`
	TargetScriptCode string   `json:"target_script_code"`
}

func (*DraftParams) Kind() TaskKind { return TaskKindDraft }

type ExtractParams struct {
	ProjectID string `json:"project_id"`
}

func (*ExtractParams) Kind() TaskKind { return TaskKindExtract }

// NewTaskParams returns an empty payload of the variant matching kind.
func NewTaskParams(kind TaskKind) (TaskParams, error) {
	switch kind {
	case TaskKindAlign:
		return &AlignParams{}, nil
	case TaskKindTrain:
		return &TrainParams{}, nil
	case TaskKindDraft:
		return &DraftParams{}, nil
	case TaskKindExtract:
		return &ExtractParams{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTaskKind, kind)
}

func EncodeTaskParams(kind TaskKind, p TaskParams) (datatypes.JSON, error) {
	if p == nil {
		return nil, ErrMissingParams
	}
	if p.Kind() != kind {
		return nil, fmt.Errorf("%w: kind %q, parameters %q", ErrParamsKindMismatch, kind, p.Kind())
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func DecodeTaskParams(kind TaskKind, raw []byte) (TaskParams, error) {
	p, err := NewTaskParams(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s parameters: %w", kind, err)
	}
	return p, nil
}

func taskRefs(p TaskParams) (projectRef, scriptureRef, experiment string) {
	switch v := p.(type) {
	case *AlignParams:
		return v.ProjectID, v.TargetScriptureFile, v.ExperimentName
	case *TrainParams:
		return v.ProjectID, v.TargetScriptureFile, v.ExperimentName
	case *DraftParams:
		return v.SourceProjectID, "", ""
	case *ExtractParams:
		return v.ProjectID, "", ""
	}
	return "", "", ""
}
