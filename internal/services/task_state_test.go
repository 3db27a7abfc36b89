package services

import (
	"errors"
	"testing"

	types "github.com/sillsdev/silauto-backend/internal/domain"
)

func TestCheckTransition(t *testing.T) {
	cases := []struct {
		from, to types.TaskStatus
		noop     bool
		ok       bool
	}{
		{types.TaskStatusQueued, types.TaskStatusRunning, false, true},
		{types.TaskStatusQueued, types.TaskStatusCompleted, false, true},
		{types.TaskStatusQueued, types.TaskStatusFailed, false, true},
		{types.TaskStatusQueued, types.TaskStatusCancelled, false, true},
		{types.TaskStatusRunning, types.TaskStatusRunning, true, true},
		{types.TaskStatusRunning, types.TaskStatusCompleted, false, true},
		{types.TaskStatusRunning, types.TaskStatusCancelled, false, true},
		{types.TaskStatusCompleted, types.TaskStatusCompleted, true, true},
		{types.TaskStatusFailed, types.TaskStatusFailed, true, true},
		{types.TaskStatusCompleted, types.TaskStatusRunning, false, false},
		{types.TaskStatusCancelled, types.TaskStatusCompleted, false, false},
		{types.TaskStatusUnknown, types.TaskStatusCompleted, false, false},
		{types.TaskStatusUnknown, types.TaskStatusRunning, false, false},
		{types.TaskStatusQueued, types.TaskStatusQueued, false, false},
		{types.TaskStatusQueued, types.TaskStatusUnknown, false, false},
	}
	for _, tc := range cases {
		noop, err := checkTransition(tc.from, tc.to)
		if tc.ok && err != nil {
			t.Fatalf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s -> %s: expected ErrInvalidTransition, got %v", tc.from, tc.to, err)
		}
		if noop != tc.noop {
			t.Fatalf("%s -> %s: noop want=%v got=%v", tc.from, tc.to, tc.noop, noop)
		}
	}
}
