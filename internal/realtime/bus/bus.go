package bus

import (
	"context"

	"github.com/sillsdev/silauto-backend/internal/realtime"
)

// Bus carries task events between processes sharing one catalog.
type Bus interface {
	Publish(ctx context.Context, ev realtime.TaskEvent) error
	StartForwarder(ctx context.Context, onEvent func(ev realtime.TaskEvent)) error
	Close() error
}
