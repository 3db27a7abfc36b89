package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/sillsdev/silauto-backend/internal/corpus"
	"github.com/sillsdev/silauto-backend/internal/data/db"
	"github.com/sillsdev/silauto-backend/internal/data/repos"
	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/extract"
	"github.com/sillsdev/silauto-backend/internal/observability"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
)

type Config struct {
	ProjectsDir    string
	ExperimentsDir string
	ScriptureDir   string
	MaxConcurrent  int
}

// Engine keeps the catalog in line with the artifacts on disk.
// Writers of one kind, full scans and incremental ingests alike, hold that kind's lock.
type Engine struct {
	cfg      Config
	log      *logger.Logger
	tx       db.TxRunner
	analyzer corpus.Analyzer
	metrics  *observability.Metrics

	projects   repos.ProjectRepo
	scriptures repos.ScriptureRepo
	tasks      repos.TaskRepo
	drafts     repos.DraftRepo
	langCodes  repos.LangCodeRepo

	locks map[Kind]*sync.Mutex
}

func NewEngine(
	cfg Config,
	baseLog *logger.Logger,
	tx db.TxRunner,
	analyzer corpus.Analyzer,
	metrics *observability.Metrics,
	projects repos.ProjectRepo,
	scriptures repos.ScriptureRepo,
	tasks repos.TaskRepo,
	drafts repos.DraftRepo,
	langCodes repos.LangCodeRepo,
) *Engine {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	locks := make(map[Kind]*sync.Mutex, len(AllKinds))
	for _, k := range AllKinds {
		locks[k] = &sync.Mutex{}
	}
	return &Engine{
		cfg:        cfg,
		log:        baseLog.With("component", "ReconcileEngine"),
		tx:         tx,
		analyzer:   analyzer,
		metrics:    metrics,
		projects:   projects,
		scriptures: scriptures,
		tasks:      tasks,
		drafts:     drafts,
		langCodes:  langCodes,
		locks:      locks,
	}
}

func (e *Engine) Config() Config { return e.cfg }

// Lock serializes catalog writers of kind and returns the unlock func.
func (e *Engine) Lock(kind Kind) func() {
	mu, ok := e.locks[kind]
	if !ok {
		panic(fmt.Sprintf("reconcile: no lock for kind %q", kind))
	}
	mu.Lock()
	return mu.Unlock
}

// ReconcileAll scans the given kinds (all when none given) concurrently.
// Every report is returned; errors from failed kinds are joined.
func (e *Engine) ReconcileAll(ctx context.Context, kinds ...Kind) ([]*Report, error) {
	if len(kinds) == 0 {
		kinds = AllKinds
	}
	reports := make([]*Report, len(kinds))
	errs := make([]error, len(kinds))

	var g errgroup.Group
	for i, kind := range kinds {
		g.Go(func() error {
			reports[i], errs[i] = e.Reconcile(ctx, kind)
			return nil
		})
	}
	_ = g.Wait()
	return reports, errors.Join(errs...)
}

// Reconcile replaces the catalog's view of one kind with what is on disk.
// Artifact failures are reported, storage failures returned.
func (e *Engine) Reconcile(ctx context.Context, kind Kind) (*Report, error) {
	ctx, span := tracerStart(ctx, "reconcile."+string(kind))
	defer span.End()

	start := time.Now()
	r := newReport(kind)
	err := e.reconcile(ctx, kind, r)
	r.finish(start)

	span.SetAttributes(
		attribute.Int("reconcile.candidates", r.Candidates),
		attribute.Int("reconcile.stored", r.Stored),
		attribute.Int("reconcile.skipped", r.Skipped),
		attribute.Int("reconcile.failures", len(r.Failures)),
	)
	e.metrics.ObserveScan(string(kind), r.Stored, len(r.Failures), r.Duration, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.Error("scan failed", "kind", kind, "error", err)
		return r, fmt.Errorf("reconcile %s: %w", kind, err)
	}
	e.log.Info("scan complete",
		"kind", kind,
		"candidates", r.Candidates,
		"stored", r.Stored,
		"skipped", r.Skipped,
		"failures", len(r.Failures),
		"duration", r.Duration,
	)
	return r, nil
}

func (e *Engine) reconcile(ctx context.Context, kind Kind, r *Report) error {
	paths, err := e.candidates(kind)
	if err != nil {
		return fmt.Errorf("enumerate: %w", err)
	}
	r.Candidates = len(paths)

	switch kind {
	case KindProjects:
		return e.replaceProjects(ctx, r, extractAll(ctx, e, r, paths, func(_ context.Context, p string) (*types.Project, error) {
			return extract.Project(p)
		}))
	case KindScriptures:
		return e.replaceScriptures(ctx, r, extractAll(ctx, e, r, paths, e.extractScripture))
	case KindExperiments:
		return e.replaceExperiments(ctx, r, extractAll(ctx, e, r, paths, func(_ context.Context, p string) (*types.Task, error) {
			return extract.Experiment(p)
		}))
	case KindDrafts:
		return e.replaceDrafts(ctx, r, extractAll(ctx, e, r, paths, func(_ context.Context, p string) (*types.Draft, error) {
			return extract.Draft(p)
		}))
	}
	return fmt.Errorf("unknown scan kind %q", kind)
}

func (e *Engine) extractScripture(ctx context.Context, path string) (*types.Scripture, error) {
	return extract.Scripture(ctx, path, e.analyzer)
}

func (e *Engine) replaceProjects(ctx context.Context, r *Report, found []*types.Project) error {
	sort.SliceStable(found, func(i, j int) bool {
		if !found[i].CreatedAt.Equal(found[j].CreatedAt) {
			return found[i].CreatedAt.After(found[j].CreatedAt)
		}
		return found[i].ID < found[j].ID
	})
	found = dedupeBy(found, func(p *types.Project) string { return p.ID })

	defer e.Lock(KindProjects)()
	return e.tx.InTx(ctx, func(dbc dbctx.Context) error {
		existing, err := e.projects.List(dbc, repos.ProjectFilter{}, 0, 0)
		if err != nil {
			return err
		}
		links := make(map[string]*string, len(existing))
		for _, p := range existing {
			if p.ExtractTaskID != nil {
				links[p.ID] = p.ExtractTaskID
			}
		}
		for _, p := range found {
			if link, ok := links[p.ID]; ok {
				p.ExtractTaskID = link
			}
		}
		if err := e.projects.Clear(dbc); err != nil {
			return err
		}
		if err := e.projects.BulkInsert(dbc, found); err != nil {
			return err
		}
		r.Stored = len(found)
		return nil
	})
}

func (e *Engine) replaceScriptures(ctx context.Context, r *Report, found []*types.Scripture) error {
	sort.SliceStable(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	found = dedupeBy(found, func(s *types.Scripture) string { return s.ID })

	defer e.Lock(KindScriptures)()
	return e.tx.InTx(ctx, func(dbc dbctx.Context) error {
		if err := e.scriptures.Clear(dbc); err != nil {
			return err
		}
		if err := e.scriptures.BulkInsert(dbc, found); err != nil {
			return err
		}
		r.Stored = len(found)
		return nil
	})
}

// replaceExperiments only owns scan-origin tasks; experiments already tracked by
// an API task are left to that task.
func (e *Engine) replaceExperiments(ctx context.Context, r *Report, found []*types.Task) error {
	sort.SliceStable(found, func(i, j int) bool {
		if !found[i].CreatedAt.Equal(found[j].CreatedAt) {
			return found[i].CreatedAt.After(found[j].CreatedAt)
		}
		return found[i].ID < found[j].ID
	})
	found = dedupeBy(found, func(t *types.Task) string { return t.ID })

	defer e.Lock(KindExperiments)()
	return e.tx.InTx(ctx, func(dbc dbctx.Context) error {
		owned, err := e.tasks.ExperimentNames(dbc, types.TaskOriginAPI)
		if err != nil {
			return err
		}
		keep := make([]*types.Task, 0, len(found))
		var pairs []*types.LangCode
		for _, t := range found {
			if owned[t.ExperimentRef()] {
				r.Skipped++
				continue
			}
			keep = append(keep, t)
			if p, ok := t.Params.(*types.TrainParams); ok {
				pairs = append(pairs, types.LangCodesFromMap(p.LangCodes)...)
			}
		}
		if _, err := e.tasks.DeleteByOrigin(dbc, types.TaskOriginScan); err != nil {
			return err
		}
		if err := e.tasks.BulkInsert(dbc, keep); err != nil {
			return err
		}
		if err := e.langCodes.BulkInsert(dbc, pairs); err != nil {
			return err
		}
		r.Stored = len(keep)
		return nil
	})
}

func (e *Engine) replaceDrafts(ctx context.Context, r *Report, found []*types.Draft) error {
	sort.SliceStable(found, func(i, j int) bool { return found[i].Key().Less(found[j].Key()) })
	found = dedupeBy(found, func(d *types.Draft) types.DraftKey { return d.Key() })

	defer e.Lock(KindDrafts)()
	return e.tx.InTx(ctx, func(dbc dbctx.Context) error {
		if err := e.drafts.Clear(dbc); err != nil {
			return err
		}
		if err := e.drafts.BulkInsert(dbc, found); err != nil {
			return err
		}
		r.Stored = len(found)
		return nil
	})
}

func tracerStart(ctx context.Context, name string) (context.Context, trace.Span) {
	return observability.Tracer().Start(ctx, name)
}

// dedupeBy keeps the first item per key, preserving order.
func dedupeBy[T any, K comparable](items []T, key func(T) K) []T {
	seen := make(map[K]bool, len(items))
	out := items[:0]
	for _, it := range items {
		k := key(it)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	return out
}
