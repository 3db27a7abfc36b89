package repos

import (
	"github.com/sillsdev/silauto-backend/internal/data/repos/catalog"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type ProjectRepo = catalog.ProjectRepo
type ScriptureRepo = catalog.ScriptureRepo
type TaskRepo = catalog.TaskRepo
type DraftRepo = catalog.DraftRepo
type LangCodeRepo = catalog.LangCodeRepo

type ProjectFilter = catalog.ProjectFilter
type ScriptureFilter = catalog.ScriptureFilter
type TaskFilter = catalog.TaskFilter
type DraftFilter = catalog.DraftFilter

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return catalog.NewProjectRepo(db, baseLog)
}
func NewScriptureRepo(db *gorm.DB, baseLog *logger.Logger) ScriptureRepo {
	return catalog.NewScriptureRepo(db, baseLog)
}
func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	return catalog.NewTaskRepo(db, baseLog)
}
func NewDraftRepo(db *gorm.DB, baseLog *logger.Logger) DraftRepo {
	return catalog.NewDraftRepo(db, baseLog)
}
func NewLangCodeRepo(db *gorm.DB, baseLog *logger.Logger) LangCodeRepo {
	return catalog.NewLangCodeRepo(db, baseLog)
}
