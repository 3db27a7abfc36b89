package app

import (
	"gorm.io/gorm"

	"github.com/sillsdev/silauto-backend/internal/data/repos"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
)

type Repos struct {
	Projects   repos.ProjectRepo
	Scriptures repos.ScriptureRepo
	Tasks      repos.TaskRepo
	Drafts     repos.DraftRepo
	LangCodes  repos.LangCodeRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Projects:   repos.NewProjectRepo(db, log),
		Scriptures: repos.NewScriptureRepo(db, log),
		Tasks:      repos.NewTaskRepo(db, log),
		Drafts:     repos.NewDraftRepo(db, log),
		LangCodes:  repos.NewLangCodeRepo(db, log),
	}
}
