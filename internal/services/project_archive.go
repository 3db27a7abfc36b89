package services

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sillsdev/silauto-backend/internal/data/repos"
	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/extract"
	"github.com/sillsdev/silauto-backend/internal/platform/dbctx"
)

type ArchiveEntry struct {
	Path string
	Name string
}

// DraftsArchive lists the files a drafts download contains.
type DraftsArchive struct {
	ProjectID string
	Entries   []ArchiveEntry
}

func (a *DraftsArchive) Filename() string { return a.ProjectID + "_drafts.zip" }

// WriteTo streams the archive as a zip. Entries whose file has vanished are skipped.
func (a *DraftsArchive) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	for _, e := range a.Entries {
		if err := addZipFile(zw, e); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			_ = zw.Close()
			return cw.n, fmt.Errorf("archive %s: %w", e.Path, err)
		}
	}
	err := zw.Close()
	return cw.n, err
}

func addZipFile(zw *zip.Writer, e ArchiveEntry) error {
	f, err := os.Open(e.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = e.Name
	hdr.Method = zip.Deflate
	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, f)
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// DraftsArchive collects the drafts of every train experiment tied to the project.
// Inside the zip an experiment with one source keeps "<experiment>/<file>"; with
// several sources files go under "<experiment>/<source>/<file>".
func (s *projectService) DraftsArchive(dbc dbctx.Context, id string) (*DraftsArchive, error) {
	p, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	trains, err := s.tasks.List(dbc, repos.TaskFilter{
		Kind:        types.TaskKindTrain,
		ProjectID:   p.ID,
		ScriptureID: p.ScriptureFilename(),
	}, 0, 0)
	if err != nil {
		return nil, internal("list_tasks_failed", err)
	}

	archive := &DraftsArchive{ProjectID: p.ID}
	seen := make(map[string]bool)
	for _, t := range trains {
		exp := t.ExperimentRef()
		if exp == "" || seen[exp] {
			continue
		}
		seen[exp] = true
		drafts, err := s.drafts.List(dbc, repos.DraftFilter{ExperimentName: exp}, 0, 0)
		if err != nil {
			return nil, internal("list_drafts_failed", err)
		}
		archive.Entries = append(archive.Entries, draftEntries(exp, drafts)...)
	}
	if len(archive.Entries) == 0 {
		return nil, notFound("drafts_not_found", "no drafts for project %s", p.ID)
	}
	return archive, nil
}

func draftEntries(experiment string, drafts []*types.Draft) []ArchiveEntry {
	if len(drafts) == 0 {
		return nil
	}
	_, expDir, ok := strings.Cut(experiment, "/")
	if !ok {
		expDir = experiment
	}
	sources := make(map[string]bool)
	for _, d := range drafts {
		sources[d.SourceScriptureName] = true
	}

	var out []ArchiveEntry
	for _, d := range drafts {
		prefix := expDir
		if len(sources) > 1 {
			prefix = expDir + "/" + d.SourceScriptureName
		}
		name := prefix + "/" + filepath.Base(d.Path)
		out = append(out, ArchiveEntry{Path: d.Path, Name: name})
		if d.HasPDF {
			pdf := strings.TrimSuffix(d.Path, extract.DraftExt) + extract.PDFExt
			out = append(out, ArchiveEntry{Path: pdf, Name: strings.TrimSuffix(name, extract.DraftExt) + extract.PDFExt})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
