package domain

import (
	"strings"

	"gorm.io/datatypes"
)

type Scripture struct {
	ID       string         `gorm:"column:id;primaryKey" json:"id"`
	Name     string         `gorm:"column:name;not null;index" json:"name"`
	LangCode string         `gorm:"column:lang_code;not null;index" json:"lang_code"`
	Path     string         `gorm:"column:path;not null" json:"path"`
	Stats    datatypes.JSON `gorm:"column:stats" json:"stats"`
}

func (Scripture) TableName() string { return "scriptures" }

// SplitScriptureID splits a corpus stem once on the first hyphen.
// ok is false unless both halves are non-empty.
func SplitScriptureID(stem string) (lang, name string, ok bool) {
	lang, name, found := strings.Cut(stem, "-")
	if !found || lang == "" || name == "" {
		return "", "", false
	}
	return lang, name, true
}
