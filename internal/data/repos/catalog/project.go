package catalog

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
)

type ProjectFilter struct {
	// ScriptureFilename matches iso_code + "-" + id.
	ScriptureFilename string
}

type ProjectRepo interface {
	Count(dbc dbctx.Context) (int64, error)
	GetByID(dbc dbctx.Context, id string) (*types.Project, error)
	GetByIDs(dbc dbctx.Context, ids []string) ([]*types.Project, error)
	List(dbc dbctx.Context, filter ProjectFilter, skip, limit int) ([]*types.Project, error)
	Create(dbc dbctx.Context, p *types.Project) error
	Update(dbc dbctx.Context, p *types.Project) error
	SetExtractTask(dbc dbctx.Context, id string, taskID string) error
	Delete(dbc dbctx.Context, id string) (bool, error)
	Clear(dbc dbctx.Context) error
	BulkInsert(dbc dbctx.Context, projects []*types.Project) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return &projectRepo{
		db:  db,
		log: baseLog.With("repo", "ProjectRepo"),
	}
}

func (r *projectRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	err := dbc.Pick(r.db).Model(&types.Project{}).Count(&n).Error
	return n, err
}

func (r *projectRepo) GetByID(dbc dbctx.Context, id string) (*types.Project, error) {
	var p types.Project
	err := dbc.Pick(r.db).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) GetByIDs(dbc dbctx.Context, ids []string) ([]*types.Project, error) {
	out := []*types.Project{}
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.Pick(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *projectRepo) List(dbc dbctx.Context, filter ProjectFilter, skip, limit int) ([]*types.Project, error) {
	q := dbc.Pick(r.db).Model(&types.Project{})
	if filter.ScriptureFilename != "" {
		q = q.Where("(iso_code || '-' || id) = ?", filter.ScriptureFilename)
	}
	var out []*types.Project
	err := page(q.Order("created_at DESC").Order("id ASC"), skip, limit).Find(&out).Error
	return out, err
}

// Create is a no-op when the id already exists.
func (r *projectRepo) Create(dbc dbctx.Context, p *types.Project) error {
	return dbc.Pick(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(p).Error
}

func (r *projectRepo) Update(dbc dbctx.Context, p *types.Project) error {
	res := dbc.Pick(r.db).Model(&types.Project{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"name":            p.Name,
		"full_name":       p.FullName,
		"iso_code":        p.IsoCode,
		"lang":            p.Lang,
		"path":            p.Path,
		"created_at":      p.CreatedAt,
		"extract_task_id": p.ExtractTaskID,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *projectRepo) SetExtractTask(dbc dbctx.Context, id string, taskID string) error {
	res := dbc.Pick(r.db).Model(&types.Project{}).Where("id = ?", id).Update("extract_task_id", taskID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *projectRepo) Delete(dbc dbctx.Context, id string) (bool, error) {
	res := dbc.Pick(r.db).Where("id = ?", id).Delete(&types.Project{})
	return res.RowsAffected > 0, res.Error
}

func (r *projectRepo) Clear(dbc dbctx.Context) error {
	return dbc.Pick(r.db).Where("1 = 1").Delete(&types.Project{}).Error
}

func (r *projectRepo) BulkInsert(dbc dbctx.Context, projects []*types.Project) error {
	if len(projects) == 0 {
		return nil
	}
	return dbc.Pick(r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(projects, bulkBatchSize).Error
}
