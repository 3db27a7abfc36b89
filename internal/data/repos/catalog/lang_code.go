package catalog

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
)

type LangCodeRepo interface {
	// Count returns the number of distinct codes.
	Count(dbc dbctx.Context) (int64, error)
	List(dbc dbctx.Context, code string) ([]*types.LangCode, error)
	Create(dbc dbctx.Context, lc *types.LangCode) error
	Delete(dbc dbctx.Context, code, name string) (bool, error)
	Clear(dbc dbctx.Context) error
	BulkInsert(dbc dbctx.Context, codes []*types.LangCode) error
}

type langCodeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLangCodeRepo(db *gorm.DB, baseLog *logger.Logger) LangCodeRepo {
	return &langCodeRepo{
		db:  db,
		log: baseLog.With("repo", "LangCodeRepo"),
	}
}

func (r *langCodeRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	err := dbc.Pick(r.db).Model(&types.LangCode{}).Distinct("code").Count(&n).Error
	return n, err
}

func (r *langCodeRepo) List(dbc dbctx.Context, code string) ([]*types.LangCode, error) {
	q := dbc.Pick(r.db).Model(&types.LangCode{})
	if code != "" {
		q = q.Where("code = ?", code)
	}
	var out []*types.LangCode
	err := q.Order("code ASC").Order("name ASC").Find(&out).Error
	return out, err
}

func (r *langCodeRepo) Create(dbc dbctx.Context, lc *types.LangCode) error {
	return dbc.Pick(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(lc).Error
}

func (r *langCodeRepo) Delete(dbc dbctx.Context, code, name string) (bool, error) {
	res := dbc.Pick(r.db).Where("code = ? AND name = ?", code, name).Delete(&types.LangCode{})
	return res.RowsAffected > 0, res.Error
}

func (r *langCodeRepo) Clear(dbc dbctx.Context) error {
	return dbc.Pick(r.db).Where("1 = 1").Delete(&types.LangCode{}).Error
}

func (r *langCodeRepo) BulkInsert(dbc dbctx.Context, codes []*types.LangCode) error {
	if len(codes) == 0 {
		return nil
	}
	return dbc.Pick(r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(codes, bulkBatchSize).Error
}
