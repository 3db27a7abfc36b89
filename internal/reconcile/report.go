package reconcile

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindProjects    Kind = "projects"
	KindScriptures  Kind = "scriptures"
	KindExperiments Kind = "experiments"
	KindDrafts      Kind = "drafts"
)

// AllKinds is the order reports are returned in by ReconcileAll.
var AllKinds = []Kind{KindProjects, KindScriptures, KindExperiments, KindDrafts}

func ParseKind(s string) (Kind, error) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown scan kind %q", s)
}

type Failure struct {
	Path    string `json:"path"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

type Report struct {
	Kind       Kind          `json:"kind"`
	Candidates int           `json:"candidates"`
	Stored     int           `json:"stored"`
	Skipped    int           `json:"skipped"`
	Failures   []Failure     `json:"failures"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

func newReport(kind Kind) *Report {
	return &Report{Kind: kind, Failures: []Failure{}}
}

func (r *Report) fail(path string, err error) {
	r.Failures = append(r.Failures, Failure{Path: path, Message: err.Error(), Err: err})
}

func (r *Report) finish(start time.Time) {
	r.Duration = time.Since(start)
	r.DurationMS = r.Duration.Milliseconds()
}
