package entity

import "time"

// Submission is a payment proof uploaded by a student against a voucher
type Submission struct {
	ID               string     `json:"id" bson:"_id"`
	VoucherID        string     `json:"voucherId" bson:"voucherId"`
	StudentID        string     `json:"studentId" bson:"studentId"`
	PaymentMethod    string     `json:"paymentMethod" bson:"paymentMethod"`
	PaymentProof     string     `json:"paymentProof" bson:"paymentProof"`
	ProofContentType string     `json:"proofContentType" bson:"proofContentType"`
	ProofPages       int        `json:"proofPages,omitempty" bson:"proofPages,omitempty"`
	PaymentDate      time.Time  `json:"paymentDate" bson:"paymentDate"`
	SubmissionDate   time.Time  `json:"submissionDate" bson:"submissionDate"`
	Status           string     `json:"status" bson:"status"`
	ReceiptNumber    string     `json:"receiptNumber,omitempty" bson:"receiptNumber,omitempty"`
	VerifiedBy       string     `json:"verifiedBy,omitempty" bson:"verifiedBy,omitempty"`
	VerifiedAt       *time.Time `json:"verifiedAt,omitempty" bson:"verifiedAt,omitempty"`
	Remarks          string     `json:"remarks,omitempty" bson:"remarks,omitempty"`
}

// IsActive reports whether the submission still blocks a new proof for its voucher
func (s *Submission) IsActive() bool {
	return s.Status == SubmissionStatusPending || s.Status == SubmissionStatusVerified
}
