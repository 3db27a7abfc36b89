package domain

import "time"

type Project struct {
	ID            string    `gorm:"column:id;primaryKey" json:"id"`
	Name          string    `gorm:"column:name;not null" json:"name"`
	FullName      string    `gorm:"column:full_name" json:"full_name"`
	IsoCode       string    `gorm:"column:iso_code;not null;index" json:"iso_code"`
	Lang          string    `gorm:"column:lang" json:"lang"`
	Path          string    `gorm:"column:path;not null" json:"path"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;index;autoCreateTime:false" json:"created_at"`
	ExtractTaskID *string   `gorm:"column:extract_task_id;index" json:"extract_task_id,omitempty"`
}

func (Project) TableName() string { return "projects" }

// ScriptureFilename is the corpus stem a project's extraction produces.
func (p *Project) ScriptureFilename() string {
	return p.IsoCode + "-" + p.ID
}
