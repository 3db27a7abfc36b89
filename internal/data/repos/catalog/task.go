package catalog

import (
	"errors"

	"gorm.io/gorm"

	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
)

type TaskFilter struct {
	Kind   types.TaskKind
	Status types.TaskStatus
	Origin types.TaskOrigin
	// ProjectID matches tasks referencing the project directly; ScriptureID matches
	// align/train tasks targeting a corpus. Both set means either matches.
	ProjectID      string
	ScriptureID    string
	ExperimentName string
}

type TaskRepo interface {
	Count(dbc dbctx.Context) (int64, error)
	GetByID(dbc dbctx.Context, id string) (*types.Task, error)
	List(dbc dbctx.Context, filter TaskFilter, skip, limit int) ([]*types.Task, error)
	Create(dbc dbctx.Context, t *types.Task) error
	Update(dbc dbctx.Context, t *types.Task) error
	Delete(dbc dbctx.Context, id string) (bool, error)
	Clear(dbc dbctx.Context) error
	BulkInsert(dbc dbctx.Context, tasks []*types.Task) error
	DeleteByOrigin(dbc dbctx.Context, origin types.TaskOrigin) (int64, error)
	ExperimentNames(dbc dbctx.Context, origin types.TaskOrigin) (map[string]bool, error)
}

type taskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	return &taskRepo{
		db:  db,
		log: baseLog.With("repo", "TaskRepo"),
	}
}

func (r *taskRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	err := dbc.Pick(r.db).Model(&types.Task{}).Count(&n).Error
	return n, err
}

func (r *taskRepo) GetByID(dbc dbctx.Context, id string) (*types.Task, error) {
	var t types.Task
	err := dbc.Pick(r.db).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *taskRepo) List(dbc dbctx.Context, filter TaskFilter, skip, limit int) ([]*types.Task, error) {
	q := dbc.Pick(r.db).Model(&types.Task{})
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Origin != "" {
		q = q.Where("origin = ?", filter.Origin)
	}
	if filter.ExperimentName != "" {
		q = q.Where("experiment_name = ?", filter.ExperimentName)
	}
	switch {
	case filter.ProjectID != "" && filter.ScriptureID != "":
		q = q.Where("(project_ref = ? OR scripture_ref = ?)", filter.ProjectID, filter.ScriptureID)
	case filter.ProjectID != "":
		q = q.Where("project_ref = ?", filter.ProjectID)
	case filter.ScriptureID != "":
		q = q.Where("scripture_ref = ?", filter.ScriptureID)
	}
	var out []*types.Task
	err := page(q.Order("created_at DESC").Order("id ASC"), skip, limit).Find(&out).Error
	return out, err
}

// Create fails on a duplicate id.
func (r *taskRepo) Create(dbc dbctx.Context, t *types.Task) error {
	return dbc.Pick(r.db).Create(t).Error
}

func (r *taskRepo) Update(dbc dbctx.Context, t *types.Task) error {
	if err := t.EncodeParams(); err != nil {
		return err
	}
	res := dbc.Pick(r.db).
		Session(&gorm.Session{SkipHooks: true}).
		Model(&types.Task{}).
		Where("id = ?", t.ID).
		Updates(map[string]interface{}{
			"kind":            t.Kind,
			"status":          t.Status,
			"created_at":      t.CreatedAt,
			"started_at":      t.StartedAt,
			"ended_at":        t.EndedAt,
			"error":           t.Error,
			"origin":          t.Origin,
			"project_ref":     t.ProjectRef,
			"scripture_ref":   t.ScriptureRef,
			"experiment_name": t.ExperimentName,
			"parameters":      t.RawParams,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *taskRepo) Delete(dbc dbctx.Context, id string) (bool, error) {
	res := dbc.Pick(r.db).Where("id = ?", id).Delete(&types.Task{})
	return res.RowsAffected > 0, res.Error
}

func (r *taskRepo) Clear(dbc dbctx.Context) error {
	return dbc.Pick(r.db).Where("1 = 1").Delete(&types.Task{}).Error
}

func (r *taskRepo) BulkInsert(dbc dbctx.Context, tasks []*types.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	return dbc.Pick(r.db).CreateInBatches(tasks, bulkBatchSize).Error
}

func (r *taskRepo) DeleteByOrigin(dbc dbctx.Context, origin types.TaskOrigin) (int64, error) {
	res := dbc.Pick(r.db).Where("origin = ?", origin).Delete(&types.Task{})
	return res.RowsAffected, res.Error
}

// ExperimentNames returns the experiment names claimed by tasks of the given origin.
func (r *taskRepo) ExperimentNames(dbc dbctx.Context, origin types.TaskOrigin) (map[string]bool, error) {
	var names []string
	err := dbc.Pick(r.db).
		Model(&types.Task{}).
		Where("origin = ? AND experiment_name <> ''", origin).
		Distinct().
		Pluck("experiment_name", &names).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out, nil
}
