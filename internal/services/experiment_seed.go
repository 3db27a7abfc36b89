package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/extract"
)

const maxSeedAttempts = 1000

type alignSeed struct {
	Data struct {
		Aligner     string          `yaml:"aligner"`
		CorpusPairs []alignSeedPair `yaml:"corpus_pairs"`
		Tokenize    bool            `yaml:"tokenize"`
	} `yaml:"data"`
}

type alignSeedPair struct {
	Type     string   `yaml:"type"`
	Trg      string   `yaml:"trg"`
	Src      []string `yaml:"src"`
	Mapping  string   `yaml:"mapping"`
	TestSize int      `yaml:"test_size"`
	ValSize  int      `yaml:"val_size"`
}

type trainSeed struct {
	Data struct {
		CorpusPairs []trainSeedPair   `yaml:"corpus_pairs"`
		LangCodes   map[string]string `yaml:"lang_codes"`
		Seed        int               `yaml:"seed"`
		Terms       struct {
			Dictionary     bool `yaml:"dictionary"`
			IncludeGlosses bool `yaml:"include_glosses"`
			Train          bool `yaml:"train"`
		} `yaml:"terms"`
		Tokenizer struct {
			InitUnk       bool `yaml:"init_unk"`
			ShareVocab    bool `yaml:"share_vocab"`
			SrcVocabSize  int  `yaml:"src_vocab_size"`
			TrainedTokens int  `yaml:"trained_tokens"`
			TrgVocabSize  int  `yaml:"trg_vocab_size"`
			UpdateSrc     bool `yaml:"update_src"`
			UpdateTrg     bool `yaml:"update_trg"`
		} `yaml:"tokenizer"`
	} `yaml:"data"`
	Eval struct {
		EarlyStopping          *int `yaml:"early_stopping"`
		PerDeviceEvalBatchSize int  `yaml:"per_device_eval_batch_size"`
	} `yaml:"eval"`
	Infer struct {
		InferBatchSize int `yaml:"infer_batch_size"`
	} `yaml:"infer"`
	Model  string `yaml:"model"`
	Params struct {
		LearningRate    float64 `yaml:"learning_rate"`
		LRSchedulerType string  `yaml:"lr_scheduler_type"`
		WarmupSteps     int     `yaml:"warmup_steps"`
	} `yaml:"params"`
	Train struct {
		AutoGradAcc bool `yaml:"auto_grad_acc"`
		MaxSteps    int  `yaml:"max_steps"`
	} `yaml:"train"`
}

type trainSeedPair struct {
	Mapping     string   `yaml:"mapping"`
	Src         []string `yaml:"src"`
	TestSize    int      `yaml:"test_size"`
	Trg         string   `yaml:"trg"`
	Type        string   `yaml:"type"`
	ValSize     int      `yaml:"val_size"`
	CorpusBooks []string `yaml:"corpus_books,omitempty"`
}

func alignConfig(p *types.AlignParams) any {
	var c alignSeed
	c.Data.Aligner = "fast_align"
	c.Data.CorpusPairs = []alignSeedPair{{
		Type:    "train",
		Trg:     p.TargetScriptureFile,
		Src:     p.SourceScriptureFiles,
		Mapping: "many_to_many",
	}}
	return c
}

func trainConfig(p *types.TrainParams) any {
	var c trainSeed
	c.Data.CorpusPairs = []trainSeedPair{{
		Mapping:     "mixed_src",
		Src:         p.SourceScriptureFiles,
		TestSize:    250,
		Trg:         p.TargetScriptureFile,
		Type:        "train,test,val",
		ValSize:     250,
		CorpusBooks: splitCorpusBooks(p.TrainingCorpus),
	}}
	c.Data.LangCodes = p.LangCodes
	c.Data.Seed = 111
	c.Data.Terms.IncludeGlosses = true
	c.Data.Terms.Train = true
	c.Data.Tokenizer.SrcVocabSize = 2000
	c.Data.Tokenizer.TrainedTokens = 1000
	c.Data.Tokenizer.TrgVocabSize = 2000
	c.Data.Tokenizer.UpdateSrc = true
	c.Data.Tokenizer.UpdateTrg = true
	c.Eval.PerDeviceEvalBatchSize = 16
	c.Infer.InferBatchSize = 8
	c.Model = "facebook/nllb-200-distilled-1.3B"
	c.Params.LearningRate = 0.0002
	c.Params.LRSchedulerType = "cosine"
	c.Params.WarmupSteps = 1000
	c.Train.AutoGradAcc = true
	c.Train.MaxSteps = 5000
	return c
}

func splitCorpusBooks(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// seedExperiment writes config.yml into a fresh <root>/<project>/<kind>-<yymmdd>[-n]
// directory and returns the experiment name "<project>/<dir>".
// validProjectID reports whether id names a single directory under a data root.
func validProjectID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func seedExperiment(root, projectID string, kind types.TaskKind, now time.Time, config any) (string, error) {
	if !validProjectID(projectID) {
		return "", fmt.Errorf("invalid project id %q", projectID)
	}
	raw, err := yaml.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("encode experiment config: %w", err)
	}
	base := filepath.Join(root, projectID)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("create experiments dir: %w", err)
	}

	stem := fmt.Sprintf("%s-%s", kind, now.Format("060102"))
	for n := 0; n < maxSeedAttempts; n++ {
		name := stem
		if n > 0 {
			name = fmt.Sprintf("%s-%d", stem, n)
		}
		dir := filepath.Join(base, name)
		err := os.Mkdir(dir, 0o755)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create experiment dir: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, extract.ExperimentConfigFilename), raw, 0o644); err != nil {
			_ = os.RemoveAll(dir)
			return "", fmt.Errorf("write experiment config: %w", err)
		}
		return projectID + "/" + name, nil
	}
	return "", fmt.Errorf("no free experiment directory for %s under %s", stem, base)
}
