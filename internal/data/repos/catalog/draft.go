package catalog

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
)

type DraftFilter struct {
	ProjectID           string
	ExperimentName      string
	SourceScriptureName string
}

type DraftRepo interface {
	Count(dbc dbctx.Context) (int64, error)
	List(dbc dbctx.Context, filter DraftFilter, skip, limit int) ([]*types.Draft, error)
	Create(dbc dbctx.Context, d *types.Draft) error
	Delete(dbc dbctx.Context, key types.DraftKey) (bool, error)
	Clear(dbc dbctx.Context) error
	BulkInsert(dbc dbctx.Context, drafts []*types.Draft) error
}

type draftRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDraftRepo(db *gorm.DB, baseLog *logger.Logger) DraftRepo {
	return &draftRepo{
		db:  db,
		log: baseLog.With("repo", "DraftRepo"),
	}
}

func (r *draftRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	err := dbc.Pick(r.db).Model(&types.Draft{}).Count(&n).Error
	return n, err
}

func (r *draftRepo) List(dbc dbctx.Context, filter DraftFilter, skip, limit int) ([]*types.Draft, error) {
	q := dbc.Pick(r.db).Model(&types.Draft{})
	if filter.ProjectID != "" {
		q = q.Where("project_id = ?", filter.ProjectID)
	}
	if filter.ExperimentName != "" {
		q = q.Where("train_experiment_name = ?", filter.ExperimentName)
	}
	if filter.SourceScriptureName != "" {
		q = q.Where("source_scripture_name = ?", filter.SourceScriptureName)
	}
	q = q.Order("project_id").Order("train_experiment_name").Order("source_scripture_name").Order("book_name")
	var out []*types.Draft
	err := page(q, skip, limit).Find(&out).Error
	return out, err
}

// Create ignores a draft whose composite key is already cataloged.
func (r *draftRepo) Create(dbc dbctx.Context, d *types.Draft) error {
	return dbc.Pick(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(d).Error
}

func (r *draftRepo) Delete(dbc dbctx.Context, key types.DraftKey) (bool, error) {
	res := dbc.Pick(r.db).
		Where("project_id = ? AND train_experiment_name = ? AND source_scripture_name = ? AND book_name = ?",
			key.ProjectID, key.TrainExperimentName, key.SourceScriptureName, key.BookName).
		Delete(&types.Draft{})
	return res.RowsAffected > 0, res.Error
}

func (r *draftRepo) Clear(dbc dbctx.Context) error {
	return dbc.Pick(r.db).Where("1 = 1").Delete(&types.Draft{}).Error
}

func (r *draftRepo) BulkInsert(dbc dbctx.Context, drafts []*types.Draft) error {
	if len(drafts) == 0 {
		return nil
	}
	return dbc.Pick(r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(drafts, bulkBatchSize).Error
}
