package realtime

import (
	types "github.com/sillsdev/silauto-backend/internal/domain"
)

type EventType string

const (
	EventTaskCreated       EventType = "TaskCreated"
	EventTaskStatusChanged EventType = "TaskStatusChanged"
	EventTaskDeleted       EventType = "TaskDeleted"
)

// TaskEvent is what subscribers of the task stream receive.
type TaskEvent struct {
	Event    EventType   `json:"event"`
	Task     *types.Task `json:"task"`
	Previous string      `json:"previous_status,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
}
