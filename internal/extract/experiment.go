package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	types "github.com/sillsdev/silauto-backend/internal/domain"
)

const (
	AlignResultsFilename = "corpus-stats.csv"
	TrainResultsGlob     = "scores-*.csv"
)

var experimentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("silauto/experiments"))

// ExperimentTaskID is stable for a given experiment name so rescans do not mint new ids.
func ExperimentTaskID(experimentName string) string {
	return uuid.NewSHA1(experimentNamespace, []byte(experimentName)).String()
}

// ExperimentName is "<project dir>/<experiment dir>".
func ExperimentName(dir string) string {
	clean := filepath.Clean(dir)
	return filepath.Base(filepath.Dir(clean)) + "/" + filepath.Base(clean)
}

// Experiment reconstructs an align or train task from an experiment directory.
// Tasks with results are marked completed, others unknown.
func Experiment(dir string) (*types.Task, error) {
	configPath := filepath.Join(dir, ExperimentConfigFilename)
	info, err := os.Stat(configPath)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotArtifact)
	}
	cfg, err := ReadExperimentConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	params, err := ExperimentParams(dir, cfg)
	if err != nil {
		return nil, err
	}

	status := types.TaskStatusUnknown
	if HasResults(params) {
		status = types.TaskStatusCompleted
	}
	name := ExperimentName(dir)
	return &types.Task{
		ID:        ExperimentTaskID(name),
		Kind:      params.Kind(),
		Status:    status,
		CreatedAt: CreatedTime(configPath),
		Origin:    types.TaskOriginScan,
		Params:    params,
	}, nil
}

// ExperimentParams builds the align or train payload for dir from its parsed config,
// reading any result files present.
func ExperimentParams(dir string, cfg *ExperimentConfig) (types.TaskParams, error) {
	pair, ok := cfg.FirstPair()
	if !ok {
		return nil, fmt.Errorf("%s: %w: data.corpus_pairs is empty", dir, ErrMalformedExperiment)
	}
	name := ExperimentName(dir)
	projectID := filepath.Base(filepath.Dir(filepath.Clean(dir)))
	target := pair.Trg.First()
	sources := []string(pair.Src)

	if cfg.IsAlign() {
		if target == "" || len(sources) == 0 {
			return nil, fmt.Errorf("%s: %w: align config needs trg and src", dir, ErrMalformedExperiment)
		}
		results, err := readCSVRows(filepath.Join(dir, AlignResultsFilename))
		if err != nil {
			return nil, fmt.Errorf("%s: read %s: %w", dir, AlignResultsFilename, err)
		}
		return &types.AlignParams{
			ProjectID:            projectID,
			TargetScriptureFile:  target,
			SourceScriptureFiles: sources,
			ExperimentName:       name,
			Results:              results,
		}, nil
	}

	var missing []string
	if target == "" {
		missing = append(missing, "trg")
	}
	if len(sources) == 0 {
		missing = append(missing, "src")
	}
	if len(cfg.Data.LangCodes) == 0 {
		missing = append(missing, "lang_codes")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: %w: train config missing %s", dir, ErrMalformedExperiment, strings.Join(missing, ", "))
	}

	results, err := readScores(dir)
	if err != nil {
		return nil, fmt.Errorf("%s: read scores: %w", dir, err)
	}
	return &types.TrainParams{
		ProjectID:            projectID,
		TargetScriptureFile:  target,
		SourceScriptureFiles: sources,
		TrainingCorpus:       strings.Join(pair.CorpusBooks, ","),
		LangCodes:            cfg.Data.LangCodes,
		ExperimentName:       name,
		Results:              results,
	}, nil
}

// HasResults reports whether an align or train payload carries result rows.
func HasResults(p types.TaskParams) bool {
	switch v := p.(type) {
	case *types.AlignParams:
		return len(v.Results) > 0
	case *types.TrainParams:
		return len(v.Results) > 0
	}
	return false
}

// readCSVRows returns every data row keyed by header, or nil when the file is absent or empty.
func readCSVRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rows []map[string]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, csvRow(header, rec))
	}
	return rows, nil
}

func readScores(dir string) (map[string]map[string]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, TrainResultsGlob))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	var out map[string]map[string]string
	for _, m := range matches {
		rows, err := readCSVRows(m)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string]map[string]string)
		}
		out[filepath.Base(m)] = rows[0]
	}
	return out, nil
}

func csvRow(header, rec []string) map[string]string {
	row := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(rec) {
			row[h] = rec[i]
		}
	}
	return row
}
