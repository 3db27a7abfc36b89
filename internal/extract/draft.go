package extract

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	types "github.com/sillsdev/silauto-backend/internal/domain"
)

const (
	DraftExt = ".SFM"
	PDFExt   = ".pdf"
	// DraftGlob is relative to the experiments root.
	DraftGlob = "*/*/infer/*/*/*" + DraftExt
)

// DraftExperimentDir returns the experiment directory of
// <experiment>/infer/<script>/<source>/<NNBOOK>.SFM.
func DraftExperimentDir(file string) string {
	dir := filepath.Dir(file)
	for i := 0; i < 3; i++ {
		dir = filepath.Dir(dir)
	}
	return dir
}

// DraftBookName strips the two-character ordering prefix and the extension.
func DraftBookName(file string) (string, bool) {
	base := filepath.Base(file)
	if len(base) <= 2 {
		return "", false
	}
	book, _, _ := strings.Cut(base[2:], ".")
	return book, book != ""
}

// Draft builds a catalog draft from a generated .SFM file.
func Draft(file string) (*types.Draft, error) {
	info, err := os.Stat(file)
	if err != nil || info.IsDir() || filepath.Ext(file) != DraftExt {
		return nil, fmt.Errorf("%s: %w", file, ErrNotArtifact)
	}

	expDir := DraftExperimentDir(file)
	cfg, err := ReadExperimentConfig(filepath.Join(expDir, ExperimentConfigFilename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w: experiment config not found", file, ErrMalformedDraft)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	pair, _ := cfg.FirstPair()
	target := pair.Trg.First()
	if target == "" {
		return nil, fmt.Errorf("%s: %w: experiment has no trg", file, ErrMalformedDraft)
	}
	_, projectID, ok := types.SplitScriptureID(target)
	if !ok {
		return nil, fmt.Errorf("%s: %w: trg %q is not <lang>-<project>", file, ErrMalformedDraft, target)
	}
	book, ok := DraftBookName(file)
	if !ok {
		return nil, fmt.Errorf("%s: %w: cannot derive book name", file, ErrMalformedDraft)
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		abs = file
	}
	pdf := strings.TrimSuffix(abs, DraftExt) + PDFExt
	_, pdfErr := os.Stat(pdf)

	return &types.Draft{
		ProjectID:           projectID,
		TrainExperimentName: ExperimentName(expDir),
		SourceScriptureName: filepath.Base(filepath.Dir(file)),
		BookName:            book,
		Path:                abs,
		HasPDF:              pdfErr == nil,
	}, nil
}
