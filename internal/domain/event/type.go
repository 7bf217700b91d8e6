package event

// Type identifies the type of domain event
type Type string

const (
	TypeVoucherIssued   Type = "voucher.issued"
	TypeVoucherDeleted  Type = "voucher.deleted"
	TypeProofSubmitted  Type = "payment.submitted"
	TypePaymentVerified Type = "payment.verified"
	TypePaymentRejected Type = "payment.rejected"
)

// Payload keys shared by publishers and subscribers
const (
	KeyPreviousStatus = "previous_status"
	KeyNewStatus      = "new_status"
	KeySubmissionID   = "submission_id"
	KeyNote           = "note"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeVoucherIssued,
		TypeVoucherDeleted,
		TypeProofSubmitted,
		TypePaymentVerified,
		TypePaymentRejected:
		return true
	default:
		return false
	}
}
