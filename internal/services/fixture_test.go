package services

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sillsdev/silauto-backend/internal/corpus"
	"github.com/sillsdev/silauto-backend/internal/data/db"
	"github.com/sillsdev/silauto-backend/internal/data/repos"
	"github.com/sillsdev/silauto-backend/internal/data/repos/testutil"
	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/platform/apierr"
	"github.com/sillsdev/silauto-backend/internal/reconcile"
)

var fixedNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) add(ev string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) TaskCreated(t *types.Task) { n.add("created:" + t.ID) }
func (n *recordingNotifier) TaskStatusChanged(t *types.Task, prev types.TaskStatus, _ []string) {
	n.add("status:" + t.ID + ":" + string(prev) + "->" + string(t.Status))
}
func (n *recordingNotifier) TaskDeleted(t *types.Task) { n.add("deleted:" + t.ID) }

func (n *recordingNotifier) snapshot() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

type fixture struct {
	engine     *reconcile.Engine
	notifier   *recordingNotifier
	tasksSvc   *taskService
	projSvc    *projectService
	catalog    CatalogService
	projects   repos.ProjectRepo
	scriptures repos.ScriptureRepo
	tasks      repos.TaskRepo
	drafts     repos.DraftRepo
	langCodes  repos.LangCodeRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	root := t.TempDir()
	tx := db.NewGormTxRunner(gdb)

	f := &fixture{
		notifier:   &recordingNotifier{},
		projects:   repos.NewProjectRepo(gdb, log),
		scriptures: repos.NewScriptureRepo(gdb, log),
		tasks:      repos.NewTaskRepo(gdb, log),
		drafts:     repos.NewDraftRepo(gdb, log),
		langCodes:  repos.NewLangCodeRepo(gdb, log),
	}
	f.engine = reconcile.NewEngine(reconcile.Config{
		ProjectsDir:    filepath.Join(root, "Paratext", "projects"),
		ExperimentsDir: filepath.Join(root, "MT", "experiments"),
		ScriptureDir:   filepath.Join(root, "MT", "scripture"),
		MaxConcurrent:  2,
	}, log, tx, corpus.NewVrefAnalyzer("", log), nil,
		f.projects, f.scriptures, f.tasks, f.drafts, f.langCodes)

	f.tasksSvc = NewTaskService(log, tx, f.engine, f.notifier, nil,
		f.tasks, f.projects, f.scriptures, f.langCodes).(*taskService)
	f.tasksSvc.now = func() time.Time { return fixedNow }
	f.projSvc = NewProjectService(log, tx, f.engine, f.notifier,
		f.projects, f.tasks, f.drafts).(*projectService)
	f.projSvc.now = func() time.Time { return fixedNow }
	f.catalog = NewCatalogService(log, f.projects, f.scriptures, f.tasks, f.drafts, f.langCodes)
	return f
}

func (f *fixture) cfg() reconcile.Config { return f.engine.Config() }

func (f *fixture) addScriptures(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		lang, name, _ := types.SplitScriptureID(id)
		if err := f.scriptures.Create(testutil.Ctx(), &types.Scripture{ID: id, Name: name, LangCode: lang, Path: "/corpus/" + id + ".txt"}); err != nil {
			t.Fatalf("create scripture %s: %v", id, err)
		}
	}
}

func (f *fixture) addProject(t *testing.T, id, iso string) {
	t.Helper()
	if err := f.projects.Create(testutil.Ctx(), &types.Project{ID: id, Name: id, IsoCode: iso, Path: "/projects/" + id, CreatedAt: fixedNow}); err != nil {
		t.Fatalf("create project %s: %v", id, err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func settings(name, iso string) string {
	return "<ScriptureText><Name>" + name + "</Name><LanguageIsoCode>" + iso + "</LanguageIsoCode></ScriptureText>"
}

func wantStatus(t *testing.T, err error, status int) {
	t.Helper()
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected api error with status %d, got %v", status, err)
	}
	if ae.Status != status {
		t.Fatalf("status: want=%d got=%d (%v)", status, ae.Status, err)
	}
}
