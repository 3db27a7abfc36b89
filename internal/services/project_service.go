package services

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sillsdev/silauto-backend/internal/data/db"
	"github.com/sillsdev/silauto-backend/internal/data/repos"
	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/extract"
	"github.com/sillsdev/silauto-backend/internal/platform/apierr"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
	"github.com/sillsdev/silauto-backend/internal/reconcile"
)

type ProjectListFilter struct {
	ScriptureFilename string
}

type ProjectService interface {
	// Create stores an uploaded project directory and queues its extract task.
	// File names are "<folder>/<relative path>"; the folder names the project.
	Create(dbc dbctx.Context, files []*multipart.FileHeader) (*types.Project, *types.Task, error)
	List(dbc dbctx.Context, filter ProjectListFilter, skip, limit int) ([]*types.Project, error)
	Get(dbc dbctx.Context, id string) (*types.Project, error)
	Delete(dbc dbctx.Context, id string) error
	DraftsArchive(dbc dbctx.Context, id string) (*DraftsArchive, error)
}

type projectService struct {
	log    *logger.Logger
	tx     db.TxRunner
	ingest ArtifactIngester
	notify TaskNotifier
	now    func() time.Time

	projects repos.ProjectRepo
	tasks    repos.TaskRepo
	drafts   repos.DraftRepo
}

func NewProjectService(
	baseLog *logger.Logger,
	tx db.TxRunner,
	ingest ArtifactIngester,
	notify TaskNotifier,
	projects repos.ProjectRepo,
	tasks repos.TaskRepo,
	drafts repos.DraftRepo,
) ProjectService {
	if notify == nil {
		notify = nopTaskNotifier{}
	}
	return &projectService{
		log:      baseLog.With("service", "ProjectService"),
		tx:       tx,
		ingest:   ingest,
		notify:   notify,
		now:      func() time.Time { return time.Now().UTC() },
		projects: projects,
		tasks:    tasks,
		drafts:   drafts,
	}
}

func (s *projectService) Create(dbc dbctx.Context, files []*multipart.FileHeader) (*types.Project, *types.Task, error) {
	if len(files) == 0 {
		return nil, nil, invalid("no_files", fmt.Errorf("%w: no files uploaded, at least Settings.xml is required", ErrValidation))
	}
	rels := make([]string, len(files))
	for i, f := range files {
		rel, err := uploadRelPath(uploadName(f))
		if err != nil {
			return nil, nil, invalid("invalid_filename", err)
		}
		rels[i] = rel
	}
	folder := uploadFolder(uploadName(files[0]))
	if folder == "" || strings.HasPrefix(folder, ".") || folder == reconcile.ProjectsByIDDir {
		return nil, nil, invalid("invalid_filename", fmt.Errorf("%w: cannot derive a project id from %q", ErrValidation, uploadName(files[0])))
	}
	projectID := folder + "_" + s.now().Format("060102")

	root := s.ingest.Config().ProjectsDir
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, nil, internal("create_projects_dir_failed", err)
	}
	staging := filepath.Join(root, ".upload-"+uuid.NewString())
	if err := os.Mkdir(staging, 0o755); err != nil {
		return nil, nil, internal("create_project_dir_failed", err)
	}
	defer os.RemoveAll(staging)

	for i, f := range files {
		if err := saveUpload(f, filepath.Join(staging, filepath.FromSlash(rels[i]))); err != nil {
			return nil, nil, internal("save_file_failed", fmt.Errorf("save %s: %w", uploadName(f), err))
		}
	}
	if _, err := extract.Project(staging); err != nil {
		if errors.Is(err, extract.ErrMalformedProject) {
			return nil, nil, invalid("invalid_project", err)
		}
		return nil, nil, internal("read_project_failed", err)
	}

	defer s.ingest.Lock(reconcile.KindProjects)()

	final := filepath.Join(root, projectID)
	if _, err := os.Stat(final); err == nil {
		return nil, nil, apierr.New(http.StatusConflict, "project_exists", fmt.Errorf("%w: project %s already exists", ErrConflict, projectID))
	}
	if err := os.Rename(staging, final); err != nil {
		return nil, nil, internal("create_project_dir_failed", err)
	}
	project, task, err := s.register(dbc, final)
	if err != nil {
		if rmErr := os.RemoveAll(final); rmErr != nil {
			s.log.Warn("remove project dir after failed create", "path", final, "error", rmErr)
		}
		return nil, nil, err
	}
	s.log.Info("project created", "project_id", project.ID, "extract_task_id", task.ID, "files", len(files))
	s.notify.TaskCreated(task)
	return project, task, nil
}

func (s *projectService) register(dbc dbctx.Context, dir string) (*types.Project, *types.Task, error) {
	project, err := extract.Project(dir)
	if err != nil {
		return nil, nil, invalid("invalid_project", err)
	}
	task := &types.Task{
		ID:        uuid.NewString(),
		Kind:      types.TaskKindExtract,
		Status:    types.TaskStatusQueued,
		CreatedAt: s.now(),
		Origin:    types.TaskOriginAPI,
		Params:    &types.ExtractParams{ProjectID: project.ID},
	}
	project.ExtractTaskID = &task.ID

	err = s.tx.InTx(ctxOrBackground(dbc.Ctx), func(tx dbctx.Context) error {
		if err := s.projects.Create(tx, project); err != nil {
			return err
		}
		if err := s.projects.SetExtractTask(tx, project.ID, task.ID); err != nil {
			return err
		}
		return s.tasks.Create(tx, task)
	})
	if err != nil {
		return nil, nil, internal("create_project_failed", err)
	}
	return project, task, nil
}

func (s *projectService) List(dbc dbctx.Context, filter ProjectListFilter, skip, limit int) ([]*types.Project, error) {
	out, err := s.projects.List(dbc, repos.ProjectFilter{ScriptureFilename: strings.TrimSpace(filter.ScriptureFilename)}, skip, limit)
	if err != nil {
		return nil, internal("list_projects_failed", err)
	}
	return out, nil
}

func (s *projectService) Get(dbc dbctx.Context, id string) (*types.Project, error) {
	p, err := s.projects.GetByID(dbc, id)
	if err != nil {
		return nil, internal("load_project_failed", err)
	}
	if p == nil {
		return nil, notFound("project_not_found", "project %s", id)
	}
	return p, nil
}

// Delete removes the project record and its directory. Directories outside the
// projects root are left on disk.
func (s *projectService) Delete(dbc dbctx.Context, id string) error {
	p, err := s.Get(dbc, id)
	if err != nil {
		return err
	}

	defer s.ingest.Lock(reconcile.KindProjects)()

	if within(s.ingest.Config().ProjectsDir, p.Path) {
		if err := os.RemoveAll(p.Path); err != nil {
			return internal("delete_project_dir_failed", err)
		}
	} else {
		s.log.Warn("project path outside projects root; keeping files", "project_id", id, "path", p.Path)
	}
	if _, err := s.projects.Delete(dbc, id); err != nil {
		return internal("delete_project_failed", err)
	}
	s.log.Info("project deleted", "project_id", id)
	return nil
}

// uploadRelPath drops the leading folder of an upload name ("folder/a/b" -> "a/b").
func uploadRelPath(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if name == "" || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: invalid filename %q", ErrValidation, name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: invalid filename %q", ErrValidation, name)
		}
	}
	rel := name
	if i := strings.Index(name, "/"); i >= 0 {
		rel = name[i+1:]
	}
	rel = path.Clean(rel)
	if rel == "." || rel == "" || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: invalid filename %q", ErrValidation, name)
	}
	return rel, nil
}

func uploadFolder(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	folder, _, ok := strings.Cut(name, "/")
	if !ok {
		return ""
	}
	return strings.TrimSpace(folder)
}

// uploadName is the client's file name including its folder. FileHeader.Filename
// keeps only the base name.
func uploadName(f *multipart.FileHeader) string {
	if f.Header != nil {
		if _, params, err := mime.ParseMediaType(f.Header.Get("Content-Disposition")); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}
	return f.Filename
}

func saveUpload(f *multipart.FileHeader, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func within(root, p string) bool {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	pAbs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(rootAbs, pAbs)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
