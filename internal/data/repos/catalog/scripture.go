package catalog

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
)

type ScriptureFilter struct {
	// Query is a case-insensitive substring of the id.
	Query    string
	LangCode string
}

type ScriptureRepo interface {
	Count(dbc dbctx.Context) (int64, error)
	GetByID(dbc dbctx.Context, id string) (*types.Scripture, error)
	ExistingIDs(dbc dbctx.Context, ids []string) (map[string]bool, error)
	List(dbc dbctx.Context, filter ScriptureFilter, skip, limit int) ([]*types.Scripture, error)
	Create(dbc dbctx.Context, s *types.Scripture) error
	Update(dbc dbctx.Context, s *types.Scripture) error
	Delete(dbc dbctx.Context, id string) (bool, error)
	Clear(dbc dbctx.Context) error
	BulkInsert(dbc dbctx.Context, scriptures []*types.Scripture) error
}

type scriptureRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScriptureRepo(db *gorm.DB, baseLog *logger.Logger) ScriptureRepo {
	return &scriptureRepo{
		db:  db,
		log: baseLog.With("repo", "ScriptureRepo"),
	}
}

func (r *scriptureRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	err := dbc.Pick(r.db).Model(&types.Scripture{}).Count(&n).Error
	return n, err
}

func (r *scriptureRepo) GetByID(dbc dbctx.Context, id string) (*types.Scripture, error) {
	var s types.Scripture
	err := dbc.Pick(r.db).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *scriptureRepo) ExistingIDs(dbc dbctx.Context, ids []string) (map[string]bool, error) {
	out := map[string]bool{}
	if len(ids) == 0 {
		return out, nil
	}
	var found []string
	if err := dbc.Pick(r.db).Model(&types.Scripture{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

func (r *scriptureRepo) List(dbc dbctx.Context, filter ScriptureFilter, skip, limit int) ([]*types.Scripture, error) {
	q := dbc.Pick(r.db).Model(&types.Scripture{})
	if qs := strings.TrimSpace(filter.Query); qs != "" {
		q = q.Where("LOWER(id) LIKE ?", "%"+strings.ToLower(qs)+"%")
	}
	if filter.LangCode != "" {
		q = q.Where("lang_code = ?", filter.LangCode)
	}
	var out []*types.Scripture
	err := page(q.Order("id ASC"), skip, limit).Find(&out).Error
	return out, err
}

func (r *scriptureRepo) Create(dbc dbctx.Context, s *types.Scripture) error {
	return dbc.Pick(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(s).Error
}

func (r *scriptureRepo) Update(dbc dbctx.Context, s *types.Scripture) error {
	res := dbc.Pick(r.db).Model(&types.Scripture{}).Where("id = ?", s.ID).Updates(map[string]interface{}{
		"name":      s.Name,
		"lang_code": s.LangCode,
		"path":      s.Path,
		"stats":     s.Stats,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *scriptureRepo) Delete(dbc dbctx.Context, id string) (bool, error) {
	res := dbc.Pick(r.db).Where("id = ?", id).Delete(&types.Scripture{})
	return res.RowsAffected > 0, res.Error
}

func (r *scriptureRepo) Clear(dbc dbctx.Context) error {
	return dbc.Pick(r.db).Where("1 = 1").Delete(&types.Scripture{}).Error
}

func (r *scriptureRepo) BulkInsert(dbc dbctx.Context, scriptures []*types.Scripture) error {
	if len(scriptures) == 0 {
		return nil
	}
	return dbc.Pick(r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(scriptures, bulkBatchSize).Error
}
