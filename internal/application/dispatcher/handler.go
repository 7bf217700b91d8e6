package dispatcher

import (
	"context"

	"github.com/garyjia/school-fees/internal/domain/event"
)

// Handler reacts to one voucher lifecycle event
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registered handler
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
