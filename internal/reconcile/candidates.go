package reconcile

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sillsdev/silauto-backend/internal/extract"
)

// ProjectsByIDDir holds additional projects one level deeper.
// Hidden directories are never projects; uploads are staged in them.
const ProjectsByIDDir = "_projectsById"

func (e *Engine) rootExists(kind Kind, root string) bool {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		e.log.Warn("scan root missing, treating as empty", "kind", kind, "root", root)
		return false
	}
	return true
}

func (e *Engine) candidates(kind Kind) ([]string, error) {
	switch kind {
	case KindProjects:
		if !e.rootExists(kind, e.cfg.ProjectsDir) {
			return nil, nil
		}
		return projectCandidates(e.cfg.ProjectsDir)
	case KindScriptures:
		if !e.rootExists(kind, e.cfg.ScriptureDir) {
			return nil, nil
		}
		return globFiles(filepath.Join(e.cfg.ScriptureDir, "*"+extract.ScriptureExt))
	case KindExperiments:
		if !e.rootExists(kind, e.cfg.ExperimentsDir) {
			return nil, nil
		}
		return globDirs(filepath.Join(e.cfg.ExperimentsDir, "*", "*"))
	case KindDrafts:
		if !e.rootExists(kind, e.cfg.ExperimentsDir) {
			return nil, nil
		}
		return globFiles(filepath.Join(e.cfg.ExperimentsDir, extract.DraftGlob))
	}
	return nil, nil
}

func projectCandidates(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, ent := range entries {
		if !ent.IsDir() || strings.HasPrefix(ent.Name(), ".") {
			continue
		}
		path := filepath.Join(root, ent.Name())
		if ent.Name() != ProjectsByIDDir {
			out = append(out, path)
			continue
		}
		nested, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, n := range nested {
			if n.IsDir() && !strings.HasPrefix(n.Name(), ".") {
				out = append(out, filepath.Join(path, n.Name()))
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func globFiles(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	out := matches[:0]
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

func globDirs(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	out := matches[:0]
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}
