package services

import (
	"fmt"
	"time"

	types "github.com/sillsdev/silauto-backend/internal/domain"
)

// checkTransition validates from -> to. noop is true when applying it would change nothing:
// re-applying a terminal status, or running -> running.
func checkTransition(from, to types.TaskStatus) (noop bool, err error) {
	if !to.Valid() || to == types.TaskStatusUnknown || to == types.TaskStatusQueued {
		return false, fmt.Errorf("%w: %q is not a status a task can be moved to", ErrInvalidTransition, to)
	}
	if from == to && (from.IsTerminal() || from == types.TaskStatusRunning) {
		return true, nil
	}
	if !isAllowedTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return false, nil
}

func isAllowedTransition(from, to types.TaskStatus) bool {
	switch from {
	case types.TaskStatusQueued:
		return to == types.TaskStatusRunning || to.IsTerminal()
	case types.TaskStatusRunning:
		return to.IsTerminal()
	default:
		return false
	}
}

// applyTransition moves t to status. Timestamps are written once.
func applyTransition(t *types.Task, to types.TaskStatus, errMsg string, now time.Time) (warnings []string) {
	t.Status = to
	switch {
	case to == types.TaskStatusRunning:
		if t.StartedAt == nil {
			t.StartedAt = &now
		}
	case to.IsTerminal():
		if t.EndedAt == nil {
			t.EndedAt = &now
		}
	}
	switch to {
	case types.TaskStatusCompleted:
		t.Error = ""
	case types.TaskStatusFailed:
		t.Error = errMsg
		if errMsg == "" {
			warnings = append(warnings, "task marked failed without an error message")
		}
	case types.TaskStatusCancelled:
		if errMsg != "" {
			t.Error = errMsg
		}
	}
	return warnings
}
