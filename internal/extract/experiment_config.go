package extract

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const ExperimentConfigFilename = "config.yml"

// StringList decodes either a YAML scalar or a sequence of scalars.
type StringList []string

func (l *StringList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if v := strings.TrimSpace(n.Value); v != "" && n.Tag != "!!null" {
			*l = StringList{v}
		} else {
			*l = nil
		}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := n.Decode(&items); err != nil {
			return err
		}
		out := make(StringList, 0, len(items))
		for _, it := range items {
			if it = strings.TrimSpace(it); it != "" {
				out = append(out, it)
			}
		}
		*l = out
		return nil
	}
	return fmt.Errorf("line %d: expected string or list", n.Line)
}

func (l StringList) First() string {
	if len(l) == 0 {
		return ""
	}
	return l[0]
}

type CorpusPair struct {
	Type        string     `yaml:"type,omitempty"`
	Trg         StringList `yaml:"trg"`
	Src         StringList `yaml:"src"`
	Mapping     string     `yaml:"mapping,omitempty"`
	CorpusBooks StringList `yaml:"corpus_books,omitempty"`
}

type ExperimentData struct {
	Aligner     string            `yaml:"aligner,omitempty"`
	CorpusPairs []CorpusPair      `yaml:"corpus_pairs"`
	LangCodes   map[string]string `yaml:"lang_codes,omitempty"`
}

// ExperimentConfig is the part of an experiment config.yml the catalog reads.
type ExperimentConfig struct {
	Data ExperimentData `yaml:"data"`
}

func (c *ExperimentConfig) IsAlign() bool { return strings.TrimSpace(c.Data.Aligner) != "" }

func (c *ExperimentConfig) FirstPair() (CorpusPair, bool) {
	if len(c.Data.CorpusPairs) == 0 {
		return CorpusPair{}, false
	}
	return c.Data.CorpusPairs[0], true
}

// ReadExperimentConfig parses path. A missing file wraps os.ErrNotExist.
func ReadExperimentConfig(path string) (*ExperimentConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg ExperimentConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedExperiment, path, err)
	}
	return &cfg, nil
}
