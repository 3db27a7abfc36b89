package corpus

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
)

// Stats summarizes a verse-per-line corpus file.
type Stats struct {
	Lines     int                  `json:"lines"`
	Verses    int                  `json:"verses"`
	Books     map[string]BookStats `json:"books,omitempty"`
	BookCount int                  `json:"book_count"`
}

type BookStats struct {
	Verses   int `json:"verses"`
	Total    int `json:"total"`
	Chapters int `json:"chapters"`
}

// Complete reports whether every verse of the book is translated.
func (b BookStats) Complete() bool { return b.Total > 0 && b.Verses == b.Total }

// JSON renders the stats for the catalog stats column.
func (s *Stats) JSON() (datatypes.JSON, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

type Analyzer interface {
	Analyze(ctx context.Context, path string) (*Stats, error)
}
