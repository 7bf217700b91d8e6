package service

import (
	"context"
	"fmt"

	"github.com/garyjia/school-fees/internal/application/dispatcher"
	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
	"github.com/garyjia/school-fees/internal/domain/event"
)

var historyActions = map[event.Type]string{
	event.TypeVoucherIssued:   entity.HistoryActionIssued,
	event.TypeProofSubmitted:  entity.HistoryActionProofSubmitted,
	event.TypePaymentVerified: entity.HistoryActionVerified,
	event.TypePaymentRejected: entity.HistoryActionRejected,
	event.TypeVoucherDeleted:  entity.HistoryActionDeleted,
}

// HistoryRecorder writes a VoucherHistory entry for every lifecycle event
type HistoryRecorder struct {
	repo   port.HistoryRepository
	logger Logger
}

// NewHistoryRecorder creates a new HistoryRecorder
func NewHistoryRecorder(repo port.HistoryRepository, logger Logger) *HistoryRecorder {
	return &HistoryRecorder{repo: repo, logger: logger}
}

// Register subscribes the recorder to every lifecycle event type
func (r *HistoryRecorder) Register(d dispatcher.Dispatcher) {
	types := make([]event.Type, 0, len(historyActions))
	for eventType := range historyActions {
		types = append(types, eventType)
	}
	d.SubscribeAll("voucher-history", r.Handle, types...)
}

// Handle stores the event as a history entry
func (r *HistoryRecorder) Handle(ctx context.Context, evt *event.Event) error {
	action, ok := historyActions[evt.Type]
	if !ok {
		return nil
	}

	entry := &entity.VoucherHistory{
		VoucherID:      evt.VoucherID,
		PreviousStatus: evt.GetPayloadString(event.KeyPreviousStatus),
		NewStatus:      evt.GetPayloadString(event.KeyNewStatus),
		Action:         action,
		ActorID:        evt.ActorID,
		Note:           evt.GetPayloadString(event.KeyNote),
		Timestamp:      evt.Timestamp,
	}
	if err := r.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("record %s for voucher %s: %w", action, evt.VoucherID, err)
	}
	return nil
}
