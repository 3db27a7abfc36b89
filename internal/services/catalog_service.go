package services

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sillsdev/silauto-backend/internal/data/repos"
	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
)

type DraftListFilter struct {
	ProjectID      string
	ExperimentName string
}

// CatalogCounts is the row count per catalog table.
type CatalogCounts struct {
	Projects   int64 `json:"projects"`
	Scriptures int64 `json:"scriptures"`
	Tasks      int64 `json:"tasks"`
	Drafts     int64 `json:"drafts"`
	LangCodes  int64 `json:"lang_codes"`
}

// CatalogService serves the read side of the scanned catalog.
type CatalogService interface {
	ListScriptures(dbc dbctx.Context, query string, skip, limit int) ([]*types.Scripture, error)
	GetScripture(dbc dbctx.Context, id string) (*types.Scripture, error)
	ListDrafts(dbc dbctx.Context, filter DraftListFilter, skip, limit int) ([]*types.Draft, error)
	LangCodes(dbc dbctx.Context, code string) (map[string][]string, error)
	Counts(dbc dbctx.Context) (*CatalogCounts, error)
}

type catalogService struct {
	log        *logger.Logger
	projects   repos.ProjectRepo
	scriptures repos.ScriptureRepo
	tasks      repos.TaskRepo
	drafts     repos.DraftRepo
	langCodes  repos.LangCodeRepo
}

func NewCatalogService(
	baseLog *logger.Logger,
	projects repos.ProjectRepo,
	scriptures repos.ScriptureRepo,
	tasks repos.TaskRepo,
	drafts repos.DraftRepo,
	langCodes repos.LangCodeRepo,
) CatalogService {
	return &catalogService{
		log:        baseLog.With("service", "CatalogService"),
		projects:   projects,
		scriptures: scriptures,
		tasks:      tasks,
		drafts:     drafts,
		langCodes:  langCodes,
	}
}

func (s *catalogService) ListScriptures(dbc dbctx.Context, query string, skip, limit int) ([]*types.Scripture, error) {
	out, err := s.scriptures.List(dbc, repos.ScriptureFilter{Query: strings.TrimSpace(query)}, skip, limit)
	if err != nil {
		return nil, internal("list_scriptures_failed", err)
	}
	return out, nil
}

func (s *catalogService) GetScripture(dbc dbctx.Context, id string) (*types.Scripture, error) {
	sc, err := s.scriptures.GetByID(dbc, id)
	if err != nil {
		return nil, internal("load_scripture_failed", err)
	}
	if sc == nil {
		return nil, notFound("scripture_not_found", "scripture %s", id)
	}
	return sc, nil
}

func (s *catalogService) ListDrafts(dbc dbctx.Context, filter DraftListFilter, skip, limit int) ([]*types.Draft, error) {
	f := repos.DraftFilter{
		ProjectID:      strings.TrimSpace(filter.ProjectID),
		ExperimentName: strings.TrimSpace(filter.ExperimentName),
	}
	if f.ProjectID == "" && f.ExperimentName == "" {
		return nil, invalid("missing_draft_filter", fmt.Errorf("%w: project_id or experiment_name is required", ErrValidation))
	}
	out, err := s.drafts.List(dbc, f, skip, limit)
	if err != nil {
		return nil, internal("list_drafts_failed", err)
	}
	return out, nil
}

// LangCodes maps each code to its known names, sorted.
func (s *catalogService) LangCodes(dbc dbctx.Context, code string) (map[string][]string, error) {
	rows, err := s.langCodes.List(dbc, strings.TrimSpace(code))
	if err != nil {
		return nil, internal("list_lang_codes_failed", err)
	}
	out := make(map[string][]string)
	for _, lc := range rows {
		out[lc.Code] = append(out[lc.Code], lc.Name)
	}
	for k := range out {
		sort.Strings(out[k])
	}
	if code != "" && len(out) == 0 {
		return nil, notFound("lang_code_not_found", "language code %s", code)
	}
	return out, nil
}

func (s *catalogService) Counts(dbc dbctx.Context) (*CatalogCounts, error) {
	var c CatalogCounts
	var g errgroup.Group
	count := func(dst *int64, fn func(dbctx.Context) (int64, error)) {
		g.Go(func() error {
			n, err := fn(dbc)
			*dst = n
			return err
		})
	}
	count(&c.Projects, s.projects.Count)
	count(&c.Scriptures, s.scriptures.Count)
	count(&c.Tasks, s.tasks.Count)
	count(&c.Drafts, s.drafts.Count)
	count(&c.LangCodes, s.langCodes.Count)
	if err := g.Wait(); err != nil {
		return nil, internal("count_catalog_failed", err)
	}
	return &c, nil
}
