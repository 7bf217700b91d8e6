package entity

// Caller roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleParent  = "parent"
)

// Voucher status constants (persisted)
const (
	VoucherStatusPending = "Pending"
	VoucherStatusPaid    = "Paid"
	VoucherStatusDefault = "Default"
)

// Display-only voucher states, derived at read time
const (
	DisplayStatusVerifying = "Verifying"
	DisplayStatusOverdue   = "Overdue"
)

// Submission status constants
const (
	SubmissionStatusPending  = "Pending"
	SubmissionStatusVerified = "Verified"
	SubmissionStatusRejected = "Rejected"
)

// Voucher history actions
const (
	HistoryActionIssued         = "ISSUED"
	HistoryActionProofSubmitted = "PROOF_SUBMITTED"
	HistoryActionVerified       = "VERIFIED"
	HistoryActionRejected       = "REJECTED"
	HistoryActionDeleted        = "DELETED"
)

// DateLayout is the wire format of voucher and payment dates
const DateLayout = "2006-01-02"

var validRoles = map[string]bool{
	RoleAdmin:   true,
	RoleTeacher: true,
	RoleStudent: true,
	RoleParent:  true,
}

// IsValidRole reports whether role is one of the four caller roles
func IsValidRole(role string) bool {
	return validRoles[role]
}
