package entity

import "time"

// Voucher is a monthly fee bill for one student
type Voucher struct {
	ID            string    `json:"id" bson:"_id"`
	StudentID     string    `json:"studentId" bson:"studentId"`
	StudentName   string    `json:"studentName" bson:"studentName"`
	RollNumber    string    `json:"rollNumber" bson:"rollNumber"`
	ClassID       string    `json:"classId" bson:"classId"`
	ClassName     string    `json:"className" bson:"className"`
	Month         string    `json:"month" bson:"month"`
	Amount        float64   `json:"amount" bson:"amount"`
	IssueDate     time.Time `json:"issueDate" bson:"issueDate"`
	DueDate       time.Time `json:"dueDate" bson:"dueDate"`
	Status        string    `json:"status" bson:"status"`
	VoucherNumber string    `json:"voucherNumber" bson:"voucherNumber"`
	Message       string    `json:"message,omitempty" bson:"message,omitempty"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	CreatedBy     string    `json:"createdBy" bson:"createdBy"`
}

// DisplayStatus derives the state shown to users. Overdue and Verifying are
// never persisted.
func (v *Voucher) DisplayStatus(now time.Time, awaitingVerification bool) string {
	switch v.Status {
	case VoucherStatusPaid, VoucherStatusDefault:
		return v.Status
	}
	if awaitingVerification {
		return DisplayStatusVerifying
	}
	if dueDay(now).After(dueDay(v.DueDate)) {
		return DisplayStatusOverdue
	}
	return v.Status
}

func dueDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
