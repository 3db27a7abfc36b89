package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/sillsdev/silauto-backend/internal/data/db"
	"github.com/sillsdev/silauto-backend/internal/data/repos/testutil"
	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
)

func TestProjectRepo(t *testing.T) {
	gdb := testutil.DB(t)
	repo := NewProjectRepo(gdb, testutil.Logger(t))
	dbc := testutil.Ctx()

	now := time.Now().UTC()
	older := &types.Project{ID: "P1", Name: "One", IsoCode: "xyz", Path: "/p/P1", CreatedAt: now.Add(-time.Hour)}
	newer := &types.Project{ID: "P2", Name: "Two", IsoCode: "abc", Path: "/p/P2", CreatedAt: now}
	if err := repo.BulkInsert(dbc, []*types.Project{older, newer}); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}

	dup := &types.Project{ID: "P1", Name: "Other", IsoCode: "zzz", Path: "/p/x", CreatedAt: now}
	if err := repo.Create(dbc, dup); err != nil {
		t.Fatalf("Create duplicate should be a no-op, got %v", err)
	}
	got, err := repo.GetByID(dbc, "P1")
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v %v", got, err)
	}
	if got.Name != "One" {
		t.Fatalf("duplicate create overwrote row: %+v", got)
	}

	list, err := repo.List(dbc, ProjectFilter{}, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "P2" {
		t.Fatalf("expected newest first, got %+v", list)
	}

	byFile, err := repo.List(dbc, ProjectFilter{ScriptureFilename: "xyz-P1"}, 0, 10)
	if err != nil {
		t.Fatalf("List by scripture filename: %v", err)
	}
	if len(byFile) != 1 || byFile[0].ID != "P1" {
		t.Fatalf("unexpected filter result: %+v", byFile)
	}

	if err := repo.SetExtractTask(dbc, "P1", "task-1"); err != nil {
		t.Fatalf("SetExtractTask: %v", err)
	}
	got, _ = repo.GetByID(dbc, "P1")
	if got.ExtractTaskID == nil || *got.ExtractTaskID != "task-1" {
		t.Fatalf("extract task not linked: %+v", got)
	}

	if err := repo.SetExtractTask(dbc, "missing", "task-1"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	missing, err := repo.GetByID(dbc, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil,nil for missing project, got %v %v", missing, err)
	}

	ok, err := repo.Delete(dbc, "P2")
	if err != nil || !ok {
		t.Fatalf("Delete: %v %v", ok, err)
	}
	if n, _ := repo.Count(dbc); n != 1 {
		t.Fatalf("expected 1 project after delete, got %d", n)
	}
}

func TestScriptureRepoExistingIDsAndQuery(t *testing.T) {
	gdb := testutil.DB(t)
	repo := NewScriptureRepo(gdb, testutil.Logger(t))
	dbc := testutil.Ctx()

	err := repo.BulkInsert(dbc, []*types.Scripture{
		{ID: "en-KJV", Name: "KJV", LangCode: "en", Path: "/s/en-KJV.txt"},
		{ID: "es-RVR", Name: "RVR", LangCode: "es", Path: "/s/es-RVR.txt"},
	})
	if err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}

	existing, err := repo.ExistingIDs(dbc, []string{"en-KJV", "fr-LSG"})
	if err != nil {
		t.Fatalf("ExistingIDs: %v", err)
	}
	if !existing["en-KJV"] || existing["fr-LSG"] {
		t.Fatalf("unexpected existing set: %v", existing)
	}

	found, err := repo.List(dbc, ScriptureFilter{Query: "kjv"}, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(found) != 1 || found[0].ID != "en-KJV" {
		t.Fatalf("case-insensitive query failed: %+v", found)
	}
}

func TestTaskRepoRoundTripsParams(t *testing.T) {
	gdb := testutil.DB(t)
	repo := NewTaskRepo(gdb, testutil.Logger(t))
	dbc := testutil.Ctx()

	task := &types.Task{
		ID:        "t1",
		Kind:      types.TaskKindTrain,
		Status:    types.TaskStatusQueued,
		CreatedAt: time.Now().UTC(),
		Origin:    types.TaskOriginAPI,
		Params: &types.TrainParams{
			ProjectID:            "P1",
			TargetScriptureFile:  "xyz-P1",
			SourceScriptureFiles: []string{"en-KJV"},
			LangCodes:            map[string]string{"en": "eng_Latn"},
			ExperimentName:       "P1/KJV",
		},
	}
	if err := repo.Create(dbc, task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(dbc, &types.Task{ID: "t1", Kind: types.TaskKindExtract, Params: &types.ExtractParams{ProjectID: "P1"}}); err == nil {
		t.Fatalf("expected duplicate task create to fail")
	}

	got, err := repo.GetByID(dbc, "t1")
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v %v", got, err)
	}
	params, ok := got.Params.(*types.TrainParams)
	if !ok {
		t.Fatalf("expected *TrainParams, got %T", got.Params)
	}
	if params.LangCodes["en"] != "eng_Latn" {
		t.Fatalf("params not decoded: %+v", params)
	}

	now := time.Now().UTC()
	got.Status = types.TaskStatusRunning
	got.StartedAt = &now
	params.Results = map[string]map[string]string{"scores-5000.csv": {"BLEU": "30.1"}}
	if err := repo.Update(dbc, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	again, _ := repo.GetByID(dbc, "t1")
	if again.Status != types.TaskStatusRunning || again.StartedAt == nil {
		t.Fatalf("status not persisted: %+v", again)
	}
	if again.Params.(*types.TrainParams).Results["scores-5000.csv"]["BLEU"] != "30.1" {
		t.Fatalf("results not persisted: %+v", again.Params)
	}

	if err := repo.Update(dbc, &types.Task{ID: "ghost", Kind: types.TaskKindExtract, Params: &types.ExtractParams{}}); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found for ghost update, got %v", err)
	}

	byScripture, err := repo.List(dbc, TaskFilter{ProjectID: "other", ScriptureID: "xyz-P1"}, 0, 0)
	if err != nil || len(byScripture) != 1 {
		t.Fatalf("expected task found by scripture ref, got %d %v", len(byScripture), err)
	}
}

func TestTaskRepoOriginOwnership(t *testing.T) {
	gdb := testutil.DB(t)
	repo := NewTaskRepo(gdb, testutil.Logger(t))
	dbc := testutil.Ctx()
	now := time.Now().UTC()

	tasks := []*types.Task{
		{ID: "api-1", Kind: types.TaskKindAlign, Status: types.TaskStatusQueued, CreatedAt: now, Origin: types.TaskOriginAPI,
			Params: &types.AlignParams{ProjectID: "P1", TargetScriptureFile: "xyz-P1", SourceScriptureFiles: []string{"en-KJV"}, ExperimentName: "P1/align-250101"}},
		{ID: "scan-1", Kind: types.TaskKindTrain, Status: types.TaskStatusUnknown, CreatedAt: now, Origin: types.TaskOriginScan,
			Params: &types.TrainParams{ProjectID: "P1", TargetScriptureFile: "xyz-P1", SourceScriptureFiles: []string{"en-KJV"}, ExperimentName: "P1/KJV"}},
	}
	if err := repo.BulkInsert(dbc, tasks); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}

	owned, err := repo.ExperimentNames(dbc, types.TaskOriginAPI)
	if err != nil {
		t.Fatalf("ExperimentNames: %v", err)
	}
	if !owned["P1/align-250101"] || owned["P1/KJV"] {
		t.Fatalf("unexpected api-owned experiments: %v", owned)
	}

	n, err := repo.DeleteByOrigin(dbc, types.TaskOriginScan)
	if err != nil || n != 1 {
		t.Fatalf("DeleteByOrigin: %d %v", n, err)
	}
	if left, _ := repo.Count(dbc); left != 1 {
		t.Fatalf("expected api task to survive, count=%d", left)
	}
}

func TestDraftRepoDedupesCompositeKey(t *testing.T) {
	gdb := testutil.DB(t)
	repo := NewDraftRepo(gdb, testutil.Logger(t))
	dbc := testutil.Ctx()

	d := func(book string) *types.Draft {
		return &types.Draft{ProjectID: "P1", TrainExperimentName: "P1/KJV", SourceScriptureName: "SRC", BookName: book, Path: "/x/" + book}
	}
	if err := repo.BulkInsert(dbc, []*types.Draft{d("MAT"), d("MRK")}); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if err := repo.BulkInsert(dbc, []*types.Draft{d("MAT"), d("LUK")}); err != nil {
		t.Fatalf("BulkInsert second: %v", err)
	}
	list, err := repo.List(dbc, DraftFilter{ProjectID: "P1"}, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 unique drafts, got %d", len(list))
	}
	if list[0].BookName != "LUK" {
		t.Fatalf("expected key order, got first %q", list[0].BookName)
	}
}

func TestLangCodeRepoInsertIgnore(t *testing.T) {
	gdb := testutil.DB(t)
	repo := NewLangCodeRepo(gdb, testutil.Logger(t))
	dbc := testutil.Ctx()

	codes := []*types.LangCode{{Code: "en", Name: "eng_Latn"}, {Code: "en", Name: "eng_Latn"}, {Code: "en", Name: "eng_Brai"}, {Code: "es", Name: "spa_Latn"}}
	if err := repo.BulkInsert(dbc, codes); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	n, err := repo.Count(dbc)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 distinct codes, got %d %v", n, err)
	}
	en, err := repo.List(dbc, "en")
	if err != nil || len(en) != 2 {
		t.Fatalf("expected 2 names for en, got %d %v", len(en), err)
	}
}

func TestClearAndBulkInsertRollBackTogether(t *testing.T) {
	gdb := testutil.DB(t)
	repo := NewScriptureRepo(gdb, testutil.Logger(t))
	runner := db.NewGormTxRunner(gdb)
	ctx := context.Background()

	if err := repo.Create(testutil.Ctx(), &types.Scripture{ID: "en-KJV", Name: "KJV", LangCode: "en", Path: "/a"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	boom := errors.New("boom")
	err := runner.InTx(ctx, func(dbc dbctx.Context) error {
		if err := repo.Clear(dbc); err != nil {
			return err
		}
		if err := repo.BulkInsert(dbc, []*types.Scripture{{ID: "es-RVR", Name: "RVR", LangCode: "es", Path: "/b"}}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	list, _ := repo.List(testutil.Ctx(), ScriptureFilter{}, 0, 0)
	if len(list) != 1 || list[0].ID != "en-KJV" {
		t.Fatalf("expected previous set after rollback, got %+v", list)
	}
}
