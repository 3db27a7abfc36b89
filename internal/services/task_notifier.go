package services

import (
	"context"
	"time"

	types "github.com/sillsdev/silauto-backend/internal/domain"
	"github.com/sillsdev/silauto-backend/internal/platform/logger"
	"github.com/sillsdev/silauto-backend/internal/realtime"
	"github.com/sillsdev/silauto-backend/internal/realtime/bus"
)

type TaskNotifier interface {
	TaskCreated(task *types.Task)
	TaskStatusChanged(task *types.Task, previous types.TaskStatus, warnings []string)
	TaskDeleted(task *types.Task)
}

type taskNotifier struct {
	log *logger.Logger
	hub *realtime.Hub
	bus bus.Bus
}

// NewTaskNotifier delivers task events to local stream subscribers. With a bus the
// events go through it instead, and the bus forwarder feeds the hub of every node.
func NewTaskNotifier(baseLog *logger.Logger, hub *realtime.Hub, b bus.Bus) TaskNotifier {
	return &taskNotifier{
		log: baseLog.With("service", "TaskNotifier"),
		hub: hub,
		bus: b,
	}
}

func (n *taskNotifier) TaskCreated(task *types.Task) {
	n.emit(realtime.TaskEvent{Event: realtime.EventTaskCreated, Task: task})
}

func (n *taskNotifier) TaskStatusChanged(task *types.Task, previous types.TaskStatus, warnings []string) {
	n.emit(realtime.TaskEvent{
		Event:    realtime.EventTaskStatusChanged,
		Task:     task,
		Previous: string(previous),
		Warnings: warnings,
	})
}

func (n *taskNotifier) TaskDeleted(task *types.Task) {
	n.emit(realtime.TaskEvent{Event: realtime.EventTaskDeleted, Task: task})
}

func (n *taskNotifier) emit(ev realtime.TaskEvent) {
	n.log.Debug("task event", "event", ev.Event, "task_id", ev.Task.ID, "status", ev.Task.Status)
	if n.bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := n.bus.Publish(ctx, ev)
		cancel()
		if err == nil {
			return
		}
		n.log.Warn("task event publish failed; delivering locally", "event", ev.Event, "error", err)
	}
	if n.hub != nil {
		n.hub.Broadcast(ev)
	}
}

type nopTaskNotifier struct{}

func (nopTaskNotifier) TaskCreated(*types.Task)                                   {}
func (nopTaskNotifier) TaskStatusChanged(*types.Task, types.TaskStatus, []string) {}
func (nopTaskNotifier) TaskDeleted(*types.Task)                                   {}
