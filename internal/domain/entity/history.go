package entity

import "time"

// VoucherHistory is one entry of a voucher's status audit trail
type VoucherHistory struct {
	ID             string    `json:"id" bson:"_id"`
	VoucherID      string    `json:"voucherId" bson:"voucherId"`
	PreviousStatus string    `json:"previousStatus,omitempty" bson:"previousStatus,omitempty"`
	NewStatus      string    `json:"newStatus,omitempty" bson:"newStatus,omitempty"`
	Action         string    `json:"action" bson:"action"`
	ActorID        string    `json:"actorId" bson:"actorId"`
	Note           string    `json:"note,omitempty" bson:"note,omitempty"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
}
