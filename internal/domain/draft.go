package domain

// Draft rows are replaced wholesale on every scan, so the surrogate id is
// storage-only; a draft is identified by its Key.
type Draft struct {
	ID                  uint   `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	ProjectID           string `gorm:"column:project_id;not null;uniqueIndex:idx_drafts_key,priority:1" json:"project_id"`
	TrainExperimentName string `gorm:"column:train_experiment_name;not null;uniqueIndex:idx_drafts_key,priority:2" json:"train_experiment_name"`
	SourceScriptureName string `gorm:"column:source_scripture_name;not null;uniqueIndex:idx_drafts_key,priority:3" json:"source_scripture_name"`
	BookName            string `gorm:"column:book_name;not null;uniqueIndex:idx_drafts_key,priority:4" json:"book_name"`
	Path                string `gorm:"column:path;not null" json:"path"`
	HasPDF              bool   `gorm:"column:has_pdf;not null;default:false" json:"has_pdf"`
}

func (Draft) TableName() string { return "drafts" }

// DraftKey is the natural identity of a draft.
type DraftKey struct {
	ProjectID           string
	TrainExperimentName string
	SourceScriptureName string
	BookName            string
}

func (d *Draft) Key() DraftKey {
	return DraftKey{
		ProjectID:           d.ProjectID,
		TrainExperimentName: d.TrainExperimentName,
		SourceScriptureName: d.SourceScriptureName,
		BookName:            d.BookName,
	}
}

func (k DraftKey) Less(o DraftKey) bool {
	if k.ProjectID != o.ProjectID {
		return k.ProjectID < o.ProjectID
	}
	if k.TrainExperimentName != o.TrainExperimentName {
		return k.TrainExperimentName < o.TrainExperimentName
	}
	if k.SourceScriptureName != o.SourceScriptureName {
		return k.SourceScriptureName < o.SourceScriptureName
	}
	return k.BookName < o.BookName
}
