package entity

import "time"

// FeeStructure holds the monthly fees billed to every student of a grade
type FeeStructure struct {
	ID         string    `json:"id" bson:"_id"`
	Grade      string    `json:"grade" bson:"grade"`
	TuitionFee float64   `json:"tuitionFee" bson:"tuitionFee"`
	OtherFee   float64   `json:"otherFee" bson:"otherFee"`
	TotalFee   float64   `json:"totalFee" bson:"totalFee"`
	DueDate    string    `json:"dueDate" bson:"dueDate"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Amount is the billed amount: TotalFee when set, otherwise the sum of the parts
func (f *FeeStructure) Amount() float64 {
	if f.TotalFee > 0 {
		return f.TotalFee
	}
	return f.TuitionFee + f.OtherFee
}
