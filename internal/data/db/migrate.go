package db

import (
	types "github.com/sillsdev/silauto-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Project{},
		&types.Scripture{},
		&types.Task{},
		&types.Draft{},
		&types.LangCode{},
	)
}
