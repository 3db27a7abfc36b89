package extract

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	types "github.com/sillsdev/silauto-backend/internal/domain"
)

const SettingsFilename = "Settings.xml"

// ProjectSettings is the subset of a Paratext Settings.xml the catalog keeps.
type ProjectSettings struct {
	Name            string `xml:"Name"`
	FullName        string `xml:"FullName"`
	Language        string `xml:"Language"`
	LanguageIsoCode string `xml:"LanguageIsoCode"`
}

// IsoCode drops anything after the first ':' (script and region qualifiers).
func (s *ProjectSettings) IsoCode() string {
	code, _, _ := strings.Cut(s.LanguageIsoCode, ":")
	return strings.TrimSpace(code)
}

// ParseSettings reads Settings.xml content and checks the required elements.
func ParseSettings(r io.Reader) (*ProjectSettings, error) {
	var s ProjectSettings
	if err := xml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrMalformedProject, SettingsFilename, err)
	}
	s.Name = strings.TrimSpace(s.Name)
	s.FullName = strings.TrimSpace(s.FullName)
	s.Language = strings.TrimSpace(s.Language)
	s.LanguageIsoCode = strings.TrimSpace(s.LanguageIsoCode)

	var missing []string
	if s.Name == "" {
		missing = append(missing, "Name")
	}
	if s.IsoCode() == "" {
		missing = append(missing, "LanguageIsoCode")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s missing %s", ErrMalformedProject, SettingsFilename, strings.Join(missing, ", "))
	}
	return &s, nil
}

// Project builds a catalog project from a project directory.
func Project(dir string) (*types.Project, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotArtifact)
	}

	f, err := os.Open(filepath.Join(dir, SettingsFilename))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s not found", dir, ErrMalformedProject, SettingsFilename)
	}
	defer f.Close()

	settings, err := ParseSettings(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return &types.Project{
		ID:        filepath.Base(abs),
		Name:      settings.Name,
		FullName:  settings.FullName,
		IsoCode:   settings.IsoCode(),
		Lang:      settings.Language,
		Path:      abs,
		CreatedAt: CreatedTime(dir),
	}, nil
}
