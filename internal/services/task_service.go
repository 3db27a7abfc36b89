package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sillsdev/silauto-backend/internal/data/db"
	"github.com/sillsdev/silauto-backend/internal/data/repos"
	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/observability"
	"github.com/sillsdev/silauto-backend/internal/platform/apierr"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
	"github.com/sillsdev/silauto-backend/internal/reconcile"
)

// ArtifactIngester is the part of the reconciliation engine the task lifecycle drives.
type ArtifactIngester interface {
	Config() reconcile.Config
	Lock(kind reconcile.Kind) func()
	ExperimentDir(experimentName string) string
	IngestProjectScriptures(ctx context.Context, projectID string) (*reconcile.Report, error)
	IngestDrafts(ctx context.Context, projectID, experimentName, source string) (*reconcile.Report, error)
}

type TaskListFilter struct {
	Kind      types.TaskKind
	Status    types.TaskStatus
	ProjectID string
}

type StatusUpdate struct {
	Status types.TaskStatus `json:"status"`
	Error  string           `json:"error"`
}

type StatusUpdateResult struct {
	Task     *types.Task `json:"task"`
	Changed  bool        `json:"changed"`
	Warnings []string    `json:"warnings,omitempty"`
}

type TaskService interface {
	CreateAlign(dbc dbctx.Context, params *types.AlignParams) (*types.Task, error)
	CreateTrain(dbc dbctx.Context, params *types.TrainParams) (*types.Task, error)
	CreateDraft(dbc dbctx.Context, params *types.DraftParams) (*types.Task, error)
	CreateExtract(dbc dbctx.Context, params *types.ExtractParams) (*types.Task, error)
	Get(dbc dbctx.Context, id string) (*types.Task, error)
	List(dbc dbctx.Context, filter TaskListFilter, skip, limit int) ([]*types.Task, error)
	UpdateStatus(dbc dbctx.Context, id string, update StatusUpdate) (*StatusUpdateResult, error)
	Delete(dbc dbctx.Context, id string) error
}

type taskService struct {
	log     *logger.Logger
	tx      db.TxRunner
	ingest  ArtifactIngester
	notify  TaskNotifier
	metrics *observability.Metrics
	now     func() time.Time

	tasks      repos.TaskRepo
	projects   repos.ProjectRepo
	scriptures repos.ScriptureRepo
	langCodes  repos.LangCodeRepo

	// statusMu makes read-check-write of a status atomic within the process.
	statusMu sync.Mutex
}

func NewTaskService(
	baseLog *logger.Logger,
	tx db.TxRunner,
	ingest ArtifactIngester,
	notify TaskNotifier,
	metrics *observability.Metrics,
	tasks repos.TaskRepo,
	projects repos.ProjectRepo,
	scriptures repos.ScriptureRepo,
	langCodes repos.LangCodeRepo,
) TaskService {
	if notify == nil {
		notify = nopTaskNotifier{}
	}
	return &taskService{
		log:        baseLog.With("service", "TaskService"),
		tx:         tx,
		ingest:     ingest,
		notify:     notify,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
		tasks:      tasks,
		projects:   projects,
		scriptures: scriptures,
		langCodes:  langCodes,
	}
}

func (s *taskService) CreateAlign(dbc dbctx.Context, params *types.AlignParams) (*types.Task, error) {
	if params == nil {
		return nil, invalid("invalid_align_params", fmt.Errorf("%w: missing parameters", ErrValidation))
	}
	p := *params
	p.TargetScriptureFile = strings.TrimSpace(p.TargetScriptureFile)
	p.SourceScriptureFiles = trimAll(p.SourceScriptureFiles)
	p.Results = nil

	p.ProjectID = strings.TrimSpace(p.ProjectID)

	ve := &ValidationError{}
	if p.ProjectID != "" && !validProjectID(p.ProjectID) {
		ve.add("project_id %q must be a plain directory name", p.ProjectID)
	}
	if p.TargetScriptureFile == "" {
		ve.add("target_scripture_file is required")
	}
	if len(p.SourceScriptureFiles) == 0 {
		ve.add("source_scripture_files needs at least one entry")
	}
	if err := ve.orNil(); err != nil {
		return nil, invalid("invalid_align_params", err)
	}
	if err := s.requireScriptures(dbc, p.TargetScriptureFile, p.SourceScriptureFiles); err != nil {
		return nil, err
	}
	p.ProjectID = resolveProjectID(p.ProjectID, p.TargetScriptureFile)

	return s.createExperimentTask(dbc, &p, p.ProjectID, alignConfig(&p), func(name string) {
		p.ExperimentName = name
	}, nil)
}

func (s *taskService) CreateTrain(dbc dbctx.Context, params *types.TrainParams) (*types.Task, error) {
	if params == nil {
		return nil, invalid("invalid_train_params", fmt.Errorf("%w: missing parameters", ErrValidation))
	}
	p := *params
	p.TargetScriptureFile = strings.TrimSpace(p.TargetScriptureFile)
	p.SourceScriptureFiles = trimAll(p.SourceScriptureFiles)
	p.TrainingCorpus = strings.Join(splitCorpusBooks(p.TrainingCorpus), ",")
	p.Results = nil

	p.ProjectID = strings.TrimSpace(p.ProjectID)

	ve := &ValidationError{}
	if p.ProjectID != "" && !validProjectID(p.ProjectID) {
		ve.add("project_id %q must be a plain directory name", p.ProjectID)
	}
	if p.TargetScriptureFile == "" {
		ve.add("target_scripture_file is required")
	}
	if len(p.SourceScriptureFiles) == 0 {
		ve.add("source_scripture_files needs at least one entry")
	}
	if len(types.LangCodesFromMap(p.LangCodes)) == 0 {
		ve.add("lang_codes needs at least one entry")
	}
	if err := ve.orNil(); err != nil {
		return nil, invalid("invalid_train_params", err)
	}
	if err := s.requireScriptures(dbc, p.TargetScriptureFile, p.SourceScriptureFiles); err != nil {
		return nil, err
	}
	p.ProjectID = resolveProjectID(p.ProjectID, p.TargetScriptureFile)

	return s.createExperimentTask(dbc, &p, p.ProjectID, trainConfig(&p), func(name string) {
		p.ExperimentName = name
	}, types.LangCodesFromMap(p.LangCodes))
}

func (s *taskService) CreateDraft(dbc dbctx.Context, params *types.DraftParams) (*types.Task, error) {
	if params == nil {
		return nil, invalid("invalid_draft_params", fmt.Errorf("%w: missing parameters", ErrValidation))
	}
	p := *params
	p.TrainTaskID = strings.TrimSpace(p.TrainTaskID)
	p.SourceProjectID = strings.TrimSpace(p.SourceProjectID)
	p.BookNames = trimAll(p.BookNames)

	ve := &ValidationError{}
	if p.SourceProjectID == "" {
		ve.add("source_project_id is required")
	} else {
		proj, err := s.projects.GetByID(dbc, p.SourceProjectID)
		if err != nil {
			return nil, internal("load_project_failed", err)
		}
		if proj == nil {
			ve.add("project %q not found", p.SourceProjectID)
		}
	}
	if p.TrainTaskID == "" {
		ve.add("train_task_id is required")
	} else {
		train, err := s.tasks.GetByID(dbc, p.TrainTaskID)
		if err != nil {
			return nil, internal("load_task_failed", err)
		}
		switch {
		case train == nil:
			ve.add("task %q not found", p.TrainTaskID)
		default:
			if train.Kind != types.TaskKindTrain {
				ve.add("task %q is of kind %s, expected %s", train.ID, train.Kind, types.TaskKindTrain)
			}
			if train.Status != types.TaskStatusCompleted {
				ve.add("task %q has status %s, expected %s", train.ID, train.Status, types.TaskStatusCompleted)
			}
		}
	}
	if err := ve.orNil(); err != nil {
		return nil, invalid("invalid_draft_params", err)
	}
	return s.create(dbc, &p, nil)
}

func (s *taskService) CreateExtract(dbc dbctx.Context, params *types.ExtractParams) (*types.Task, error) {
	if params == nil || strings.TrimSpace(params.ProjectID) == "" {
		return nil, invalid("invalid_extract_params", fmt.Errorf("%w: project_id is required", ErrValidation))
	}
	p := types.ExtractParams{ProjectID: strings.TrimSpace(params.ProjectID)}
	proj, err := s.projects.GetByID(dbc, p.ProjectID)
	if err != nil {
		return nil, internal("load_project_failed", err)
	}
	if proj == nil {
		return nil, invalid("unknown_project", &ReferenceError{Entity: "project", IDs: []string{p.ProjectID}})
	}
	return s.create(dbc, &p, nil)
}

// createExperimentTask seeds the experiment directory and inserts the task while holding
// the experiments lock, so a concurrent scan never adopts the new directory as its own.
func (s *taskService) createExperimentTask(
	dbc dbctx.Context,
	params types.TaskParams,
	projectID string,
	config any,
	setName func(string),
	langCodes []*types.LangCode,
) (*types.Task, error) {
	defer s.ingest.Lock(reconcile.KindExperiments)()

	name, err := seedExperiment(s.ingest.Config().ExperimentsDir, projectID, params.Kind(), s.now(), config)
	if err != nil {
		return nil, internal("seed_experiment_failed", err)
	}
	setName(name)
	task, err := s.create(dbc, params, langCodes)
	if err != nil {
		if rmErr := os.RemoveAll(s.ingest.ExperimentDir(name)); rmErr != nil {
			s.log.Warn("remove seeded experiment failed", "experiment", name, "error", rmErr)
		}
		return nil, err
	}
	return task, nil
}

func (s *taskService) create(dbc dbctx.Context, params types.TaskParams, langCodes []*types.LangCode) (*types.Task, error) {
	task := &types.Task{
		ID:        uuid.NewString(),
		Kind:      params.Kind(),
		Status:    types.TaskStatusQueued,
		CreatedAt: s.now(),
		Origin:    types.TaskOriginAPI,
		Params:    params,
	}
	err := s.tx.InTx(ctxOrBackground(dbc.Ctx), func(tx dbctx.Context) error {
		if err := s.tasks.Create(tx, task); err != nil {
			return err
		}
		return s.langCodes.BulkInsert(tx, langCodes)
	})
	if err != nil {
		return nil, internal("create_task_failed", err)
	}
	s.log.Info("task created", "task_id", task.ID, "kind", task.Kind, "experiment", task.ExperimentRef())
	s.metrics.IncTaskTransition(string(task.Kind), string(task.Status))
	s.notify.TaskCreated(task)
	return task, nil
}

// requireScriptures reports every missing id in one error, in request order.
func (s *taskService) requireScriptures(dbc dbctx.Context, target string, sources []string) error {
	ids := dedupeStrings(append([]string{target}, sources...))
	existing, err := s.scriptures.ExistingIDs(dbc, ids)
	if err != nil {
		return internal("load_scriptures_failed", err)
	}
	var missing []string
	for _, id := range ids {
		if !existing[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return invalid("unknown_scripture", &ReferenceError{Entity: "scripture", IDs: missing})
	}
	return nil
}

func (s *taskService) Get(dbc dbctx.Context, id string) (*types.Task, error) {
	t, err := s.tasks.GetByID(dbc, id)
	if err != nil {
		return nil, internal("load_task_failed", err)
	}
	if t == nil {
		return nil, notFound("task_not_found", "task %s", id)
	}
	return t, nil
}

func (s *taskService) List(dbc dbctx.Context, filter TaskListFilter, skip, limit int) ([]*types.Task, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, invalid("invalid_kind", fmt.Errorf("%w: unknown task kind %q", ErrValidation, filter.Kind))
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("invalid_status", fmt.Errorf("%w: unknown task status %q", ErrValidation, filter.Status))
	}
	rf := repos.TaskFilter{Kind: filter.Kind, Status: filter.Status}
	if filter.ProjectID != "" {
		proj, err := s.projects.GetByID(dbc, filter.ProjectID)
		if err != nil {
			return nil, internal("load_project_failed", err)
		}
		if proj == nil {
			return nil, notFound("project_not_found", "project %s", filter.ProjectID)
		}
		rf.ProjectID = proj.ID
		rf.ScriptureID = proj.ScriptureFilename()
	}
	out, err := s.tasks.List(dbc, rf, skip, limit)
	if err != nil {
		return nil, internal("list_tasks_failed", err)
	}
	return out, nil
}

func (s *taskService) Delete(dbc dbctx.Context, id string) error {
	t, err := s.Get(dbc, id)
	if err != nil {
		return err
	}
	ok, err := s.tasks.Delete(dbc, id)
	if err != nil {
		return internal("delete_task_failed", err)
	}
	if !ok {
		return notFound("task_not_found", "task %s", id)
	}
	s.log.Info("task deleted", "task_id", id, "kind", t.Kind)
	s.notify.TaskDeleted(t)
	return nil
}

func (s *taskService) UpdateStatus(dbc dbctx.Context, id string, update StatusUpdate) (*StatusUpdateResult, error) {
	ctx, span := observability.Tracer().Start(ctxOrBackground(dbc.Ctx), "task.update_status")
	defer span.End()
	span.SetAttributes(attribute.String("task.id", id), attribute.String("task.status", string(update.Status)))
	dbc.Ctx = ctx

	task, prev, changed, warnings, err := s.transition(dbc, id, update)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	res := &StatusUpdateResult{Task: task, Changed: changed}
	if !changed {
		return res, nil
	}
	span.SetAttributes(attribute.String("task.kind", string(task.Kind)), attribute.String("task.previous_status", string(prev)))
	s.metrics.IncTaskTransition(string(task.Kind), string(task.Status))

	if task.Status == types.TaskStatusCompleted {
		warnings = append(warnings, s.runCompletionEffects(ctx, task)...)
	}
	for _, w := range warnings {
		s.log.Warn("task update warning", "task_id", task.ID, "kind", task.Kind, "warning", w)
	}
	s.metrics.AddTaskWarnings(string(task.Kind), len(warnings))
	res.Warnings = warnings

	s.log.Info("task status changed", "task_id", task.ID, "kind", task.Kind, "from", prev, "to", task.Status)
	s.notify.TaskStatusChanged(task, prev, warnings)
	return res, nil
}

func (s *taskService) transition(dbc dbctx.Context, id string, update StatusUpdate) (*types.Task, types.TaskStatus, bool, []string, error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	task, err := s.Get(dbc, id)
	if err != nil {
		return nil, "", false, nil, err
	}
	prev := task.Status
	noop, err := checkTransition(prev, update.Status)
	if err != nil {
		return nil, prev, false, nil, apierr.New(http.StatusConflict, "invalid_transition", err)
	}
	if noop {
		return task, prev, false, nil, nil
	}
	warnings := applyTransition(task, update.Status, strings.TrimSpace(update.Error), s.now())
	if err := s.tasks.Update(dbc, task); err != nil {
		return nil, prev, false, nil, internal("update_task_failed", err)
	}
	return task, prev, true, warnings, nil
}

// resolveProjectID falls back to the project a corpus was extracted from (<iso>-<project>).
func resolveProjectID(projectID, targetScripture string) string {
	if projectID = strings.TrimSpace(projectID); projectID != "" {
		return projectID
	}
	if _, name, ok := types.SplitScriptureID(targetScripture); ok {
		return name
	}
	return targetScripture
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
