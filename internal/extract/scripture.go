package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sillsdev/silauto-backend/internal/corpus"
	types "github.com/sillsdev/silauto-backend/internal/domain"
)

const ScriptureExt = ".txt"

// Scripture builds a catalog scripture from a corpus file named <lang>-<name>.txt.
func Scripture(ctx context.Context, path string, analyzer corpus.Analyzer) (s *types.Scripture, err error) {
	if filepath.Ext(path) != ScriptureExt {
		return nil, fmt.Errorf("%s: %w", path, ErrNotArtifact)
	}
	stem := strings.TrimSuffix(filepath.Base(path), ScriptureExt)
	lang, name, ok := types.SplitScriptureID(stem)
	if !ok {
		return nil, fmt.Errorf("%s: %w: expected <lang>-<name>", path, ErrMalformedScripture)
	}

	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = fmt.Errorf("%s: %w: stats panicked: %v", path, ErrMalformedScripture, r)
		}
	}()

	stats, err := analyzer.Analyze(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrMalformedScripture, err)
	}
	raw, err := stats.JSON()
	if err != nil {
		return nil, fmt.Errorf("%s: encode stats: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &types.Scripture{
		ID:       stem,
		Name:     name,
		LangCode: lang,
		Path:     abs,
		Stats:    raw,
	}, nil
}
