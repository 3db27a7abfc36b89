package http

import (
	"bytes"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sillsdev/silauto-backend/internal/corpus"
	"github.com/sillsdev/silauto-backend/internal/data/db"
	"github.com/sillsdev/silauto-backend/internal/data/repos"
	"github.com/sillsdev/silauto-backend/internal/data/repos/testutil"
	types "github.com/sillsdev/silauto-backend/internal/domain"
	httpH "github.com/sillsdev/silauto-backend/internal/http/handlers"
	"github.com/sillsdev/silauto-backend/internal/observability"
	"github.com/sillsdev/silauto-backend/internal/realtime"
	"github.com/sillsdev/silauto-backend/internal/reconcile"
	"github.com/sillsdev/silauto-backend/internal/services"
)

type testAPI struct {
	router     *gin.Engine
	hub        *realtime.Hub
	scriptures repos.ScriptureRepo
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	root := t.TempDir()
	tx := db.NewGormTxRunner(gdb)

	projects := repos.NewProjectRepo(gdb, log)
	scriptures := repos.NewScriptureRepo(gdb, log)
	tasks := repos.NewTaskRepo(gdb, log)
	drafts := repos.NewDraftRepo(gdb, log)
	langCodes := repos.NewLangCodeRepo(gdb, log)

	metrics := observability.NewMetrics(true)
	engine := reconcile.NewEngine(reconcile.Config{
		ProjectsDir:    filepath.Join(root, "Paratext", "projects"),
		ExperimentsDir: filepath.Join(root, "MT", "experiments"),
		ScriptureDir:   filepath.Join(root, "MT", "scripture"),
		MaxConcurrent:  2,
	}, log, tx, corpus.NewVrefAnalyzer("", log), metrics,
		projects, scriptures, tasks, drafts, langCodes)

	hub := realtime.NewHub(log)
	t.Cleanup(hub.Close)
	notify := services.NewTaskNotifier(log, hub, nil)

	catalog := services.NewCatalogService(log, projects, scriptures, tasks, drafts, langCodes)
	router := NewRouter(RouterConfig{
		Log:             log,
		Metrics:         metrics,
		HealthHandler:   httpH.NewHealthHandler(catalog),
		ProjectHandler:  httpH.NewProjectHandler(log, services.NewProjectService(log, tx, engine, notify, projects, tasks, drafts)),
		TaskHandler:     httpH.NewTaskHandler(services.NewTaskService(log, tx, engine, notify, metrics, tasks, projects, scriptures, langCodes)),
		CatalogHandler:  httpH.NewCatalogHandler(catalog),
		RealtimeHandler: httpH.NewRealtimeHandler(log, hub),
		RescanHandler:   httpH.NewRescanHandler(log, engine),
	})
	return &testAPI{router: router, hub: hub, scriptures: scriptures}
}

func (a *testAPI) addScripture(t *testing.T, id string) {
	t.Helper()
	lang, name, _ := types.SplitScriptureID(id)
	if err := a.scriptures.Create(testutil.Ctx(), &types.Scripture{ID: id, Name: name, LangCode: lang, Path: "/corpus/" + id + ".txt"}); err != nil {
		t.Fatalf("create scripture %s: %v", id, err)
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

type errorBody struct {
	Error struct {
		Message string              `json:"message"`
		Code    string              `json:"code"`
		Details map[string][]string `json:"details"`
	} `json:"error"`
}

type taskBody struct {
	Task struct {
		ID         string          `json:"id"`
		Kind       string          `json:"kind"`
		Status     string          `json:"status"`
		StartedAt  *time.Time      `json:"started_at"`
		Parameters json.RawMessage `json:"parameters"`
	} `json:"task"`
}

func TestHealthReportsCatalogCounts(t *testing.T) {
	api := newTestAPI(t)
	api.addScripture(t, "en-KJV")

	rec := api.do(t, nethttp.MethodGet, "/health", nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status: got=%d body=%s", rec.Code, rec.Body.String())
	}
	var got struct {
		Status string                 `json:"status"`
		Counts services.CatalogCounts `json:"counts"`
	}
	decode(t, rec, &got)
	if got.Status != "ok" || got.Counts.Scriptures != 1 || got.Counts.Tasks != 0 {
		t.Fatalf("unexpected health: %+v", got)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestCreateAlignTaskReportsMissingScriptures(t *testing.T) {
	api := newTestAPI(t)
	api.addScripture(t, "en-A")

	rec := api.do(t, nethttp.MethodPost, "/api/tasks/align_task", map[string]any{
		"project_id":             "P1",
		"target_scripture_file":  "en-A",
		"source_scripture_files": []string{"en-A", "en-B"},
	})
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("status: got=%d body=%s", rec.Code, rec.Body.String())
	}
	var got errorBody
	decode(t, rec, &got)
	if got.Error.Code != "unknown_scripture" {
		t.Fatalf("code: got=%q", got.Error.Code)
	}
	if ids := got.Error.Details["scripture"]; len(ids) != 1 || ids[0] != "en-B" {
		t.Fatalf("missing ids: got=%v", ids)
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	api.addScripture(t, "en-A")
	api.addScripture(t, "de-B")

	sub := api.hub.Subscribe()
	defer api.hub.Unsubscribe(sub)

	rec := api.do(t, nethttp.MethodPost, "/api/tasks/align_task", map[string]any{
		"target_scripture_file":  "en-A",
		"source_scripture_files": []string{"de-B"},
	})
	if rec.Code != nethttp.StatusCreated {
		t.Fatalf("create: got=%d body=%s", rec.Code, rec.Body.String())
	}
	var created taskBody
	decode(t, rec, &created)
	if created.Task.Kind != "align" || created.Task.Status != "queued" {
		t.Fatalf("unexpected task: %+v", created.Task)
	}
	if !strings.Contains(string(created.Task.Parameters), `"experiment_name":"A/align-`) {
		t.Fatalf("experiment not seeded: %s", created.Task.Parameters)
	}

	select {
	case ev := <-sub.Outbound:
		if ev.Event != realtime.EventTaskCreated || ev.Task.ID != created.Task.ID {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no task event delivered")
	}

	id := created.Task.ID
	rec = api.do(t, nethttp.MethodPatch, "/api/tasks/"+id+"/status", map[string]string{"status": "running"})
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("running: got=%d body=%s", rec.Code, rec.Body.String())
	}
	var updated struct {
		Changed bool `json:"changed"`
		taskBody
	}
	decode(t, rec, &updated)
	if !updated.Changed || updated.Task.Status != "running" || updated.Task.StartedAt == nil {
		t.Fatalf("unexpected update: %+v", updated)
	}

	rec = api.do(t, nethttp.MethodPatch, "/api/tasks/"+id+"/status", map[string]string{"status": "queued"})
	if rec.Code != nethttp.StatusConflict {
		t.Fatalf("back to queued: got=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, nethttp.MethodGet, "/api/tasks?kind=align&status=running", nil)
	var listed struct {
		Tasks []json.RawMessage `json:"tasks"`
	}
	decode(t, rec, &listed)
	if rec.Code != nethttp.StatusOK || len(listed.Tasks) != 1 {
		t.Fatalf("list: got=%d tasks=%d", rec.Code, len(listed.Tasks))
	}

	if rec = api.do(t, nethttp.MethodDelete, "/api/tasks/"+id, nil); rec.Code != nethttp.StatusNoContent {
		t.Fatalf("delete: got=%d", rec.Code)
	}
	rec = api.do(t, nethttp.MethodGet, "/api/tasks/"+id, nil)
	var missing errorBody
	decode(t, rec, &missing)
	if rec.Code != nethttp.StatusNotFound || missing.Error.Code != "task_not_found" {
		t.Fatalf("get deleted: got=%d code=%q", rec.Code, missing.Error.Code)
	}
}

func TestRequestValidation(t *testing.T) {
	api := newTestAPI(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"drafts need a filter", nethttp.MethodGet, "/api/drafts", nil, nethttp.StatusBadRequest, "missing_draft_filter"},
		{"bad pagination", nethttp.MethodGet, "/api/scriptures?limit=abc", nil, nethttp.StatusBadRequest, "invalid_pagination"},
		{"unknown task kind", nethttp.MethodGet, "/api/tasks?kind=bogus", nil, nethttp.StatusBadRequest, "invalid_kind"},
		{"unknown scan kind", nethttp.MethodPost, "/api/rescan?kinds=bogus", nil, nethttp.StatusBadRequest, "invalid_scan_kind"},
		{"extract unknown project", nethttp.MethodPost, "/api/tasks/extract_task", map[string]string{"project_id": "nope"}, nethttp.StatusBadRequest, "unknown_project"},
		{"unknown lang code", nethttp.MethodGet, "/api/lang_codes/xyz", nil, nethttp.StatusNotFound, "lang_code_not_found"},
		{"unknown project", nethttp.MethodGet, "/api/projects/nope", nil, nethttp.StatusNotFound, "project_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := api.do(t, tc.method, tc.path, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status: got=%d want=%d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			if tc.code == "" {
				return
			}
			var got errorBody
			decode(t, rec, &got)
			if got.Error.Code != tc.code {
				t.Fatalf("code: got=%q want=%q", got.Error.Code, tc.code)
			}
		})
	}
}

func TestRescanReturnsReports(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, nethttp.MethodPost, "/api/rescan", map[string]any{"kinds": []string{"projects", "scriptures"}})
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status: got=%d body=%s", rec.Code, rec.Body.String())
	}
	var got struct {
		Reports []reconcile.Report `json:"reports"`
	}
	decode(t, rec, &got)
	if len(got.Reports) != 2 || got.Reports[0].Kind != reconcile.KindProjects || got.Reports[1].Kind != reconcile.KindScriptures {
		t.Fatalf("unexpected reports: %+v", got.Reports)
	}

	rec = api.do(t, nethttp.MethodGet, "/metrics", nil)
	if rec.Code != nethttp.StatusOK || !strings.Contains(rec.Body.String(), "silauto_scan_runs_total") {
		t.Fatalf("metrics: got=%d body=%s", rec.Code, rec.Body.String())
	}
}
