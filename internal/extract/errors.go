package extract

import "errors"

var (
	// ErrNotArtifact marks a path that is not an artifact of the requested kind.
	// Scans skip it silently.
	ErrNotArtifact = errors.New("not an artifact")

	ErrMalformedProject   = errors.New("malformed project")
	ErrMalformedScripture = errors.New("malformed scripture file")
	// ErrMalformedExperiment is a hard failure: the config exists but lacks required keys.
	ErrMalformedExperiment = errors.New("malformed experiment")
	ErrMalformedDraft      = errors.New("malformed draft")
)

// IsSkip reports whether err only means "not this kind of artifact".
func IsSkip(err error) bool {
	return errors.Is(err, ErrNotArtifact)
}
