package reconcile

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/sillsdev/silauto-backend/internal/data/repos"
	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/extract"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
)

// ExperimentDir maps "<project>/<experiment>" to its directory.
func (e *Engine) ExperimentDir(experimentName string) string {
	return filepath.Join(e.cfg.ExperimentsDir, filepath.FromSlash(experimentName))
}

// IngestProjectScriptures catalogs the corpus files extracted for a project
// (<lang>-<projectID>.txt) that are not cataloged yet. Existing rows are left alone.
func (e *Engine) IngestProjectScriptures(ctx context.Context, projectID string) (*Report, error) {
	ctx, span := tracerStart(ctx, "reconcile.ingest_scriptures")
	defer span.End()

	start := time.Now()
	r := newReport(KindScriptures)
	defer r.finish(start)

	if !e.rootExists(KindScriptures, e.cfg.ScriptureDir) {
		return r, nil
	}
	all, err := globFiles(filepath.Join(e.cfg.ScriptureDir, "*"+extract.ScriptureExt))
	if err != nil {
		return r, err
	}
	var paths []string
	for _, p := range all {
		// The stem splits on its first hyphen, so en-foo-P1 belongs to project foo-P1.
		stem := strings.TrimSuffix(filepath.Base(p), extract.ScriptureExt)
		if _, name, ok := types.SplitScriptureID(stem); ok && name == projectID {
			paths = append(paths, p)
		}
	}
	r.Candidates = len(paths)
	found := extractAll(ctx, e, r, paths, e.extractScripture)
	if len(found) == 0 {
		return r, nil
	}

	defer e.Lock(KindScriptures)()
	err = e.tx.InTx(ctx, func(dbc dbctx.Context) error {
		ids := make([]string, 0, len(found))
		for _, s := range found {
			ids = append(ids, s.ID)
		}
		existing, err := e.scriptures.ExistingIDs(dbc, ids)
		if err != nil {
			return err
		}
		var fresh []*types.Scripture
		for _, s := range found {
			if existing[s.ID] {
				r.Skipped++
				continue
			}
			fresh = append(fresh, s)
		}
		if err := e.scriptures.BulkInsert(dbc, fresh); err != nil {
			return err
		}
		r.Stored = len(fresh)
		return nil
	})
	return r, err
}

// IngestDrafts catalogs drafts produced under <experiment>/infer/*/<source>/
// whose keys are not cataloged yet.
func (e *Engine) IngestDrafts(ctx context.Context, projectID, experimentName, source string) (*Report, error) {
	ctx, span := tracerStart(ctx, "reconcile.ingest_drafts")
	defer span.End()

	start := time.Now()
	r := newReport(KindDrafts)
	defer r.finish(start)

	expDir := e.ExperimentDir(experimentName)
	all, err := globFiles(filepath.Join(expDir, "infer", "*", "*", "*"+extract.DraftExt))
	if err != nil {
		return r, err
	}
	var paths []string
	for _, p := range all {
		if filepath.Base(filepath.Dir(p)) == source {
			paths = append(paths, p)
		}
	}
	r.Candidates = len(paths)
	found := extractAll(ctx, e, r, paths, func(_ context.Context, p string) (*types.Draft, error) {
		return extract.Draft(p)
	})
	if len(found) == 0 {
		return r, nil
	}

	defer e.Lock(KindDrafts)()
	err = e.tx.InTx(ctx, func(dbc dbctx.Context) error {
		existing, err := e.drafts.List(dbc, repos.DraftFilter{
			ProjectID:           projectID,
			ExperimentName:      experimentName,
			SourceScriptureName: source,
		}, 0, 0)
		if err != nil {
			return err
		}
		seen := make(map[types.DraftKey]bool, len(existing))
		for _, d := range existing {
			seen[d.Key()] = true
		}
		var fresh []*types.Draft
		for _, d := range found {
			if seen[d.Key()] {
				r.Skipped++
				continue
			}
			seen[d.Key()] = true
			fresh = append(fresh, d)
		}
		if err := e.drafts.BulkInsert(dbc, fresh); err != nil {
			return err
		}
		r.Stored = len(fresh)
		return nil
	})
	return r, err
}
