package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"gorm.io/gorm"

	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/extract"
	"github.com/sillsdev/silauto-backend/internal/observability"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
	"github.com/sillsdev/silauto-backend/internal/reconcile"
)

// runCompletionEffects brings the catalog up to date with what a completed task produced.
// Failures become warnings; the task stays completed.
func (s *taskService) runCompletionEffects(ctx context.Context, task *types.Task) []string {
	ctx, span := observability.Tracer().Start(ctx, "task.completion_effects")
	defer span.End()

	switch p := task.Params.(type) {
	case *types.ExtractParams:
		return s.afterExtract(ctx, task, p)
	case *types.DraftParams:
		return s.afterDraft(ctx, p)
	case *types.AlignParams, *types.TrainParams:
		return s.refreshExperiment(ctx, task)
	}
	return nil
}

func (s *taskService) afterExtract(ctx context.Context, task *types.Task, p *types.ExtractParams) []string {
	var warnings []string
	r, err := s.ingest.IngestProjectScriptures(ctx, p.ProjectID)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("catalog extracted scriptures: %v", err))
	} else {
		warnings = append(warnings, reportWarnings(r)...)
		if r.Candidates == 0 {
			warnings = append(warnings, fmt.Sprintf("no extracted scripture found for project %s", p.ProjectID))
		}
	}

	err = s.projects.SetExtractTask(dbctx.Context{Ctx: ctx}, p.ProjectID, task.ID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		warnings = append(warnings, fmt.Sprintf("project %s is no longer cataloged", p.ProjectID))
	case err != nil:
		warnings = append(warnings, fmt.Sprintf("link extract task to project %s: %v", p.ProjectID, err))
	}
	return warnings
}

func (s *taskService) afterDraft(ctx context.Context, p *types.DraftParams) []string {
	train, err := s.tasks.GetByID(dbctx.Context{Ctx: ctx}, p.TrainTaskID)
	if err != nil {
		return []string{fmt.Sprintf("load train task %s: %v", p.TrainTaskID, err)}
	}
	if train == nil {
		return []string{fmt.Sprintf("train task %s no longer exists; drafts not cataloged", p.TrainTaskID)}
	}
	tp, ok := train.Params.(*types.TrainParams)
	if !ok || tp.ExperimentName == "" {
		return []string{fmt.Sprintf("train task %s has no experiment; drafts not cataloged", p.TrainTaskID)}
	}

	projectID := draftProjectID(tp)
	r, err := s.ingest.IngestDrafts(ctx, projectID, tp.ExperimentName, p.SourceProjectID)
	if err != nil {
		return []string{fmt.Sprintf("catalog drafts for %s: %v", tp.ExperimentName, err)}
	}
	warnings := reportWarnings(r)
	if r.Candidates == 0 {
		warnings = append(warnings, fmt.Sprintf("no drafts found in %s for source %s", tp.ExperimentName, p.SourceProjectID))
	}
	return warnings
}

// refreshExperiment re-reads the task's experiment and replaces its parameters.
// Identity, timestamps and status are kept.
func (s *taskService) refreshExperiment(ctx context.Context, task *types.Task) []string {
	name := task.ExperimentRef()
	if name == "" {
		return []string{"task has no experiment; parameters not refreshed"}
	}
	dir := s.ingest.ExperimentDir(name)
	cfg, err := extract.ReadExperimentConfig(filepath.Join(dir, extract.ExperimentConfigFilename))
	if err != nil {
		return []string{fmt.Sprintf("read experiment %s: %v", name, err)}
	}
	params, err := extract.ExperimentParams(dir, cfg)
	if err != nil {
		return []string{fmt.Sprintf("read experiment %s: %v", name, err)}
	}
	if params.Kind() != task.Kind {
		return []string{fmt.Sprintf("experiment %s is now a %s experiment; parameters not refreshed", name, params.Kind())}
	}

	var warnings []string
	if !extract.HasResults(params) {
		warnings = append(warnings, fmt.Sprintf("experiment %s has no results", name))
	}

	task.Params = params
	dbc := dbctx.Context{Ctx: ctx}
	if err := s.tasks.Update(dbc, task); err != nil {
		return append(warnings, fmt.Sprintf("store refreshed parameters: %v", err))
	}
	if tp, ok := params.(*types.TrainParams); ok {
		if err := s.langCodes.BulkInsert(dbc, types.LangCodesFromMap(tp.LangCodes)); err != nil {
			warnings = append(warnings, fmt.Sprintf("store language codes: %v", err))
		}
	}
	return warnings
}

// draftProjectID matches the project id drafts are cataloged under: the part of the
// experiment's target corpus after its language code.
func draftProjectID(tp *types.TrainParams) string {
	if _, name, ok := types.SplitScriptureID(tp.TargetScriptureFile); ok {
		return name
	}
	return tp.ProjectID
}

func reportWarnings(r *reconcile.Report) []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, fmt.Sprintf("%s: %s", f.Path, f.Message))
	}
	return out
}
