package services

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sillsdev/silauto-backend/internal/data/repos/testutil"
	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/extract"
	"github.com/sillsdev/silauto-backend/internal/reconcile"
)

func TestCreateAlignListsEveryMissingScripture(t *testing.T) {
	f := newFixture(t)
	f.addScriptures(t, "A")

	_, err := f.tasksSvc.CreateAlign(testutil.Ctx(), &types.AlignParams{
		TargetScriptureFile:  "A",
		SourceScriptureFiles: []string{"A", "B"},
	})
	wantStatus(t, err, http.StatusBadRequest)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var ref *ReferenceError
	if !errors.As(err, &ref) {
		t.Fatalf("expected *ReferenceError, got %T", err)
	}
	if ref.Entity != "scripture" || !reflect.DeepEqual(ref.IDs, []string{"B"}) {
		t.Fatalf("unexpected reference error: %+v", ref)
	}
	if n, _ := f.tasks.Count(testutil.Ctx()); n != 0 {
		t.Fatalf("no task should be stored, got %d", n)
	}
	if _, err := os.Stat(f.cfg().ExperimentsDir); !os.IsNotExist(err) {
		t.Fatalf("no experiment should be seeded: %v", err)
	}
}

func TestCreateExperimentTasksRejectPathLikeProjectID(t *testing.T) {
	f := newFixture(t)
	f.addScriptures(t, "xyz-P1", "en-KJV")

	for _, id := range []string{"../escape", "a/b", `a\b`, ".."} {
		_, err := f.tasksSvc.CreateAlign(testutil.Ctx(), &types.AlignParams{
			ProjectID:            id,
			TargetScriptureFile:  "xyz-P1",
			SourceScriptureFiles: []string{"en-KJV"},
		})
		wantStatus(t, err, http.StatusBadRequest)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("align %q: expected *ValidationError, got %v", id, err)
		}

		_, err = f.tasksSvc.CreateTrain(testutil.Ctx(), &types.TrainParams{
			ProjectID:            id,
			TargetScriptureFile:  "xyz-P1",
			SourceScriptureFiles: []string{"en-KJV"},
			LangCodes:            map[string]string{"en": "eng_Latn"},
		})
		wantStatus(t, err, http.StatusBadRequest)
	}
	if n, _ := f.tasks.Count(testutil.Ctx()); n != 0 {
		t.Fatalf("no task should be stored, got %d", n)
	}
	if _, err := os.Stat(f.cfg().ExperimentsDir); !os.IsNotExist(err) {
		t.Fatalf("no experiment should be seeded: %v", err)
	}
}

func TestCreateAlignSeedsExperiment(t *testing.T) {
	f := newFixture(t)
	f.addScriptures(t, "xyz-P1", "en-KJV", "fr-LSG")

	task, err := f.tasksSvc.CreateAlign(testutil.Ctx(), &types.AlignParams{
		TargetScriptureFile:  "xyz-P1",
		SourceScriptureFiles: []string{"en-KJV", "fr-LSG"},
	})
	if err != nil {
		t.Fatalf("CreateAlign: %v", err)
	}
	p := task.Params.(*types.AlignParams)
	if p.ProjectID != "P1" || p.ExperimentName != "P1/align-260304" {
		t.Fatalf("unexpected params: %+v", p)
	}
	if task.Status != types.TaskStatusQueued || task.Origin != types.TaskOriginAPI {
		t.Fatalf("unexpected task: %+v", task)
	}

	dir := f.engine.ExperimentDir(p.ExperimentName)
	cfg, err := extract.ReadExperimentConfig(filepath.Join(dir, extract.ExperimentConfigFilename))
	if err != nil {
		t.Fatalf("read seeded config: %v", err)
	}
	pair, _ := cfg.FirstPair()
	if !cfg.IsAlign() || pair.Trg.First() != "xyz-P1" || len(pair.Src) != 2 {
		t.Fatalf("unexpected seeded config: %+v", cfg)
	}

	second, err := f.tasksSvc.CreateAlign(testutil.Ctx(), &types.AlignParams{
		TargetScriptureFile:  "xyz-P1",
		SourceScriptureFiles: []string{"en-KJV"},
	})
	if err != nil {
		t.Fatalf("second CreateAlign: %v", err)
	}
	if got := second.ExperimentRef(); got != "P1/align-260304-1" {
		t.Fatalf("second experiment name: %s", got)
	}

	stored, _ := f.tasks.GetByID(testutil.Ctx(), task.ID)
	if stored == nil || stored.ExperimentName != "P1/align-260304" {
		t.Fatalf("lookup column not stored: %+v", stored)
	}
}

func TestCreateTrainValidatesAndStoresLangCodes(t *testing.T) {
	f := newFixture(t)
	f.addScriptures(t, "xyz-P1", "en-KJV")

	_, err := f.tasksSvc.CreateTrain(testutil.Ctx(), &types.TrainParams{TargetScriptureFile: "xyz-P1"})
	wantStatus(t, err, http.StatusBadRequest)
	if !strings.Contains(err.Error(), "source_scripture_files") || !strings.Contains(err.Error(), "lang_codes") {
		t.Fatalf("expected both problems reported, got %v", err)
	}

	task, err := f.tasksSvc.CreateTrain(testutil.Ctx(), &types.TrainParams{
		TargetScriptureFile:  "xyz-P1",
		SourceScriptureFiles: []string{"en-KJV"},
		TrainingCorpus:       "NT, GEN",
		LangCodes:            map[string]string{"en": "eng_Latn", "xyz": "xyz_Latn"},
	})
	if err != nil {
		t.Fatalf("CreateTrain: %v", err)
	}
	p := task.Params.(*types.TrainParams)
	if p.TrainingCorpus != "NT,GEN" || p.ExperimentName != "P1/train-260304" {
		t.Fatalf("unexpected params: %+v", p)
	}
	codes, err := f.catalog.LangCodes(testutil.Ctx(), "")
	if err != nil {
		t.Fatalf("LangCodes: %v", err)
	}
	if !reflect.DeepEqual(codes["en"], []string{"eng_Latn"}) || len(codes) != 2 {
		t.Fatalf("unexpected lang codes: %+v", codes)
	}

	cfg, err := extract.ReadExperimentConfig(filepath.Join(f.engine.ExperimentDir(p.ExperimentName), extract.ExperimentConfigFilename))
	if err != nil {
		t.Fatalf("read seeded config: %v", err)
	}
	reparsed, err := extract.ExperimentParams(f.engine.ExperimentDir(p.ExperimentName), cfg)
	if err != nil {
		t.Fatalf("seeded config does not parse back: %v", err)
	}
	if rp := reparsed.(*types.TrainParams); rp.TrainingCorpus != "NT,GEN" || rp.LangCodes["xyz"] != "xyz_Latn" {
		t.Fatalf("seeded config lost fields: %+v", rp)
	}
}

func TestCreateDraftGatesOnCompletedTraining(t *testing.T) {
	f := newFixture(t)
	f.addScriptures(t, "xyz-P1", "en-KJV")
	train, err := f.tasksSvc.CreateTrain(testutil.Ctx(), &types.TrainParams{
		TargetScriptureFile:  "xyz-P1",
		SourceScriptureFiles: []string{"en-KJV"},
		LangCodes:            map[string]string{"xyz": "xyz_Latn"},
	})
	if err != nil {
		t.Fatalf("CreateTrain: %v", err)
	}
	req := &types.DraftParams{
		TrainTaskID:      train.ID,
		SourceProjectID:  "SRC",
		BookNames:        []string{"MAT"},
		SourceScriptCode: "Latn",
		TargetScriptCode: "Latn",
	}

	_, err = f.tasksSvc.CreateDraft(testutil.Ctx(), req)
	wantStatus(t, err, http.StatusBadRequest)
	msg := err.Error()
	if !strings.Contains(msg, `project "SRC" not found`) || !strings.Contains(msg, "expected completed") {
		t.Fatalf("expected both violations, got %v", err)
	}

	f.addProject(t, "SRC", "en")
	if _, err := f.tasksSvc.CreateDraft(testutil.Ctx(), req); err == nil || !strings.Contains(err.Error(), "expected completed") {
		t.Fatalf("queued training must be rejected, got %v", err)
	}

	if _, err := f.tasksSvc.UpdateStatus(testutil.Ctx(), train.ID, StatusUpdate{Status: types.TaskStatusCompleted}); err != nil {
		t.Fatalf("complete training: %v", err)
	}
	draft, err := f.tasksSvc.CreateDraft(testutil.Ctx(), req)
	if err != nil {
		t.Fatalf("CreateDraft after completion: %v", err)
	}
	if draft.Kind != types.TaskKindDraft || draft.Params.(*types.DraftParams).TrainTaskID != train.ID {
		t.Fatalf("unexpected draft task: %+v", draft)
	}

	extractTask, err := f.tasksSvc.CreateExtract(testutil.Ctx(), &types.ExtractParams{ProjectID: "SRC"})
	if err != nil {
		t.Fatalf("CreateExtract: %v", err)
	}
	req.TrainTaskID = extractTask.ID
	if _, err := f.tasksSvc.CreateDraft(testutil.Ctx(), req); err == nil || !strings.Contains(err.Error(), "expected train") {
		t.Fatalf("non-train task must be rejected, got %v", err)
	}
}

func TestCreateExtractRequiresProject(t *testing.T) {
	f := newFixture(t)
	_, err := f.tasksSvc.CreateExtract(testutil.Ctx(), &types.ExtractParams{ProjectID: "nope"})
	wantStatus(t, err, http.StatusBadRequest)
	var ref *ReferenceError
	if !errors.As(err, &ref) || ref.Entity != "project" {
		t.Fatalf("expected project reference error, got %v", err)
	}
}

func TestUpdateStatusTimestampsAndTransitions(t *testing.T) {
	f := newFixture(t)
	f.addProject(t, "P1", "xyz")
	task, err := f.tasksSvc.CreateExtract(testutil.Ctx(), &types.ExtractParams{ProjectID: "P1"})
	if err != nil {
		t.Fatalf("CreateExtract: %v", err)
	}

	clock := fixedNow
	f.tasksSvc.now = func() time.Time { return clock }

	clock = fixedNow.Add(time.Minute)
	res, err := f.tasksSvc.UpdateStatus(testutil.Ctx(), task.ID, StatusUpdate{Status: types.TaskStatusRunning})
	if err != nil || !res.Changed {
		t.Fatalf("queued->running: %+v %v", res, err)
	}
	started := *res.Task.StartedAt
	if !started.Equal(clock) || res.Task.EndedAt != nil {
		t.Fatalf("unexpected timestamps after running: %+v", res.Task)
	}

	clock = fixedNow.Add(2 * time.Minute)
	res, err = f.tasksSvc.UpdateStatus(testutil.Ctx(), task.ID, StatusUpdate{Status: types.TaskStatusRunning})
	if err != nil || res.Changed || !res.Task.StartedAt.Equal(started) {
		t.Fatalf("running->running must be a no-op: %+v %v", res, err)
	}

	clock = fixedNow.Add(3 * time.Minute)
	res, err = f.tasksSvc.UpdateStatus(testutil.Ctx(), task.ID, StatusUpdate{Status: types.TaskStatusCompleted, Error: "ignored"})
	if err != nil || !res.Changed {
		t.Fatalf("running->completed: %+v %v", res, err)
	}
	ended := *res.Task.EndedAt
	if !ended.Equal(clock) || !res.Task.StartedAt.Equal(started) || res.Task.Error != "" {
		t.Fatalf("unexpected task after completion: %+v", res.Task)
	}

	clock = fixedNow.Add(4 * time.Minute)
	res, err = f.tasksSvc.UpdateStatus(testutil.Ctx(), task.ID, StatusUpdate{Status: types.TaskStatusCompleted})
	if err != nil || res.Changed || !res.Task.EndedAt.Equal(ended) {
		t.Fatalf("re-completing must be a no-op: %+v %v", res, err)
	}

	_, err = f.tasksSvc.UpdateStatus(testutil.Ctx(), task.ID, StatusUpdate{Status: types.TaskStatusRunning})
	wantStatus(t, err, http.StatusConflict)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	stored, _ := f.tasks.GetByID(testutil.Ctx(), task.ID)
	if stored.Status != types.TaskStatusCompleted || stored.StartedAt == nil || !stored.StartedAt.Equal(started) || !stored.EndedAt.Equal(ended) {
		t.Fatalf("stored task drifted: %+v", stored)
	}

	events := f.notifier.snapshot()
	want := []string{
		"created:" + task.ID,
		"status:" + task.ID + ":queued->running",
		"status:" + task.ID + ":running->completed",
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events: want=%v got=%v", want, events)
	}
}

func TestUpdateStatusFailedAndCancelled(t *testing.T) {
	f := newFixture(t)
	f.addProject(t, "P1", "xyz")
	a, _ := f.tasksSvc.CreateExtract(testutil.Ctx(), &types.ExtractParams{ProjectID: "P1"})
	b, _ := f.tasksSvc.CreateExtract(testutil.Ctx(), &types.ExtractParams{ProjectID: "P1"})

	res, err := f.tasksSvc.UpdateStatus(testutil.Ctx(), a.ID, StatusUpdate{Status: types.TaskStatusFailed})
	if err != nil {
		t.Fatalf("queued->failed: %v", err)
	}
	if len(res.Warnings) != 1 || res.Task.EndedAt == nil || res.Task.StartedAt != nil {
		t.Fatalf("failed without message should warn: %+v", res)
	}

	res, err = f.tasksSvc.UpdateStatus(testutil.Ctx(), b.ID, StatusUpdate{Status: types.TaskStatusCancelled, Error: "user abort"})
	if err != nil || res.Task.Error != "user abort" {
		t.Fatalf("queued->cancelled: %+v %v", res, err)
	}

	for _, target := range []types.TaskStatus{types.TaskStatusUnknown, types.TaskStatusQueued, "bogus"} {
		c, _ := f.tasksSvc.CreateExtract(testutil.Ctx(), &types.ExtractParams{ProjectID: "P1"})
		_, err := f.tasksSvc.UpdateStatus(testutil.Ctx(), c.ID, StatusUpdate{Status: target})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("target %q: expected ErrInvalidTransition, got %v", target, err)
		}
	}

	_, err = f.tasksSvc.UpdateStatus(testutil.Ctx(), "missing", StatusUpdate{Status: types.TaskStatusRunning})
	wantStatus(t, err, http.StatusNotFound)
}

func TestListAndDeleteTasks(t *testing.T) {
	f := newFixture(t)
	f.addProject(t, "P1", "xyz")
	f.addProject(t, "P2", "abc")
	f.addScriptures(t, "xyz-P1", "en-KJV")

	clock := fixedNow
	f.tasksSvc.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	ex1, _ := f.tasksSvc.CreateExtract(testutil.Ctx(), &types.ExtractParams{ProjectID: "P1"})
	_, _ = f.tasksSvc.CreateExtract(testutil.Ctx(), &types.ExtractParams{ProjectID: "P2"})
	al, err := f.tasksSvc.CreateAlign(testutil.Ctx(), &types.AlignParams{
		ProjectID:            "elsewhere",
		TargetScriptureFile:  "xyz-P1",
		SourceScriptureFiles: []string{"en-KJV"},
	})
	if err != nil {
		t.Fatalf("CreateAlign: %v", err)
	}

	got, err := f.tasksSvc.List(testutil.Ctx(), TaskListFilter{ProjectID: "P1"}, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ID != al.ID || got[1].ID != ex1.ID {
		t.Fatalf("project filter should match extract and target corpus, newest first: %+v", got)
	}

	all, _ := f.tasksSvc.List(testutil.Ctx(), TaskListFilter{}, 1, 1)
	if len(all) != 1 {
		t.Fatalf("paging: %d", len(all))
	}
	if _, err := f.tasksSvc.List(testutil.Ctx(), TaskListFilter{ProjectID: "nope"}, 0, 0); err == nil {
		t.Fatalf("unknown project must fail")
	}
	if _, err := f.tasksSvc.List(testutil.Ctx(), TaskListFilter{Kind: "bogus"}, 0, 0); err == nil {
		t.Fatalf("unknown kind must fail")
	}

	if err := f.tasksSvc.Delete(testutil.Ctx(), ex1.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	wantStatus(t, f.tasksSvc.Delete(testutil.Ctx(), ex1.ID), http.StatusNotFound)
	_, err = f.tasksSvc.Get(testutil.Ctx(), ex1.ID)
	wantStatus(t, err, http.StatusNotFound)
}

func TestDraftCompletionIngestsOnlyNewDrafts(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Ctx()
	f.addScriptures(t, "xyz-P1", "en-KJV")
	f.addProject(t, "SRC", "en")

	train, err := f.tasksSvc.CreateTrain(ctx, &types.TrainParams{
		TargetScriptureFile:  "xyz-P1",
		SourceScriptureFiles: []string{"en-KJV"},
		LangCodes:            map[string]string{"xyz": "xyz_Latn"},
	})
	if err != nil {
		t.Fatalf("CreateTrain: %v", err)
	}
	expDir := f.engine.ExperimentDir(train.ExperimentRef())
	writeFile(t, filepath.Join(expDir, "scores-5000.csv"), "BLEU,chrF\n30.1,55.2\n")
	if _, err := f.tasksSvc.UpdateStatus(ctx, train.ID, StatusUpdate{Status: types.TaskStatusCompleted}); err != nil {
		t.Fatalf("complete training: %v", err)
	}

	infer := filepath.Join(expDir, "infer", "5000", "SRC")
	writeFile(t, filepath.Join(infer, "41MAT.SFM"), "\\id MAT")
	writeFile(t, filepath.Join(infer, "41MAT.pdf"), "%PDF")
	writeFile(t, filepath.Join(expDir, "infer", "5000", "OTHER", "42MRK.SFM"), "\\id MRK")

	req := &types.DraftParams{TrainTaskID: train.ID, SourceProjectID: "SRC", BookNames: []string{"MAT"}}
	first, err := f.tasksSvc.CreateDraft(ctx, req)
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	res, err := f.tasksSvc.UpdateStatus(ctx, first.ID, StatusUpdate{Status: types.TaskStatusCompleted})
	if err != nil || len(res.Warnings) != 0 {
		t.Fatalf("complete draft: %+v %v", res, err)
	}

	writeFile(t, filepath.Join(infer, "42MRK.SFM"), "\\id MRK")
	second, _ := f.tasksSvc.CreateDraft(ctx, req)
	if _, err := f.tasksSvc.UpdateStatus(ctx, second.ID, StatusUpdate{Status: types.TaskStatusCompleted}); err != nil {
		t.Fatalf("complete second draft: %v", err)
	}

	drafts, err := f.catalog.ListDrafts(ctx, DraftListFilter{ProjectID: "P1"}, 0, 0)
	if err != nil {
		t.Fatalf("ListDrafts: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("want MAT and MRK from SRC only, got %+v", drafts)
	}
	for _, d := range drafts {
		if d.SourceScriptureName != "SRC" || d.TrainExperimentName != train.ExperimentRef() {
			t.Fatalf("unexpected draft: %+v", d)
		}
		if d.BookName == "MAT" && !d.HasPDF {
			t.Fatalf("MAT should have a pdf: %+v", d)
		}
	}
}

func TestEndToEndScanExtractTrain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := f.cfg()

	writeFile(t, filepath.Join(cfg.ProjectsDir, "P1", "Settings.xml"), settings("P1", "xyz"))
	if err := os.MkdirAll(filepath.Join(cfg.ProjectsDir, "broken"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(cfg.ScriptureDir, "en-KJV.txt"), "In the beginning\n")

	reports, err := f.engine.ReconcileAll(ctx)
	if err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}
	for _, r := range reports {
		if r.Kind == reconcile.KindProjects && (r.Stored != 1 || len(r.Failures) != 1) {
			t.Fatalf("projects report: %+v", r)
		}
	}

	extractTask, err := f.tasksSvc.CreateExtract(testutil.Ctx(), &types.ExtractParams{ProjectID: "P1"})
	if err != nil {
		t.Fatalf("CreateExtract: %v", err)
	}
	writeFile(t, filepath.Join(cfg.ScriptureDir, "xyz-P1.txt"), "line one\nline two\n")
	if _, err := f.tasksSvc.UpdateStatus(testutil.Ctx(), extractTask.ID, StatusUpdate{Status: types.TaskStatusRunning}); err != nil {
		t.Fatalf("extract running: %v", err)
	}
	res, err := f.tasksSvc.UpdateStatus(testutil.Ctx(), extractTask.ID, StatusUpdate{Status: types.TaskStatusCompleted})
	if err != nil {
		t.Fatalf("extract completed: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected extract warnings: %v", res.Warnings)
	}
	sc, _ := f.scriptures.GetByID(testutil.Ctx(), "xyz-P1")
	if sc == nil || sc.LangCode != "xyz" {
		t.Fatalf("extracted scripture not cataloged: %+v", sc)
	}
	proj, _ := f.projects.GetByID(testutil.Ctx(), "P1")
	if proj.ExtractTaskID == nil || *proj.ExtractTaskID != extractTask.ID {
		t.Fatalf("extract task not linked: %+v", proj)
	}

	train, err := f.tasksSvc.CreateTrain(testutil.Ctx(), &types.TrainParams{
		TargetScriptureFile:  "xyz-P1",
		SourceScriptureFiles: []string{"en-KJV"},
		LangCodes:            map[string]string{"en": "eng_Latn", "xyz": "xyz_Latn"},
	})
	if err != nil {
		t.Fatalf("CreateTrain: %v", err)
	}

	res, err = f.tasksSvc.UpdateStatus(testutil.Ctx(), train.ID, StatusUpdate{Status: types.TaskStatusCompleted})
	if err != nil {
		t.Fatalf("train completed: %v", err)
	}
	if res.Task.Status != types.TaskStatusCompleted {
		t.Fatalf("status: %s", res.Task.Status)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "no results") {
		t.Fatalf("expected a missing-results warning, got %v", res.Warnings)
	}
	stored, _ := f.tasks.GetByID(testutil.Ctx(), train.ID)
	tp := stored.Params.(*types.TrainParams)
	if tp.Results != nil || tp.ExperimentName != train.ExperimentRef() || !stored.CreatedAt.Equal(train.CreatedAt) {
		t.Fatalf("refreshed task drifted: %+v %+v", stored, tp)
	}

	r, err := f.engine.Reconcile(ctx, reconcile.KindExperiments)
	if err != nil {
		t.Fatalf("experiments scan: %v", err)
	}
	if r.Stored != 0 || r.Skipped != 1 {
		t.Fatalf("API-owned experiment must be skipped: %+v", r)
	}
	if n, _ := f.tasks.Count(testutil.Ctx()); n != 2 {
		t.Fatalf("tasks after scan: %d", n)
	}
}
