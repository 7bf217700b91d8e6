package service

import (
	"context"

	"github.com/garyjia/school-fees/internal/application/dispatcher"
	"github.com/garyjia/school-fees/internal/domain/event"
)

// publish delivers an event after the change it describes has been stored.
// Subscriber failures are logged and never undo the change.
func publish(ctx context.Context, d dispatcher.Dispatcher, logger Logger, evt *event.Event) {
	if d == nil {
		return
	}
	if err := d.Dispatch(ctx, evt); err != nil {
		logger.Error("Event delivery failed",
			"event_type", evt.Type,
			"voucher_id", evt.VoucherID,
			"error", err,
		)
	}
}
