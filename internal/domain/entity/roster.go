package entity

import "time"

// Class groups students of one grade
type Class struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Grade     string    `json:"grade" bson:"grade"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Student is a billable roster entry
type Student struct {
	ID         string    `json:"id" bson:"_id"`
	Name       string    `json:"name" bson:"name"`
	RollNumber string    `json:"rollNumber" bson:"rollNumber"`
	ClassID    string    `json:"classId" bson:"classId"`
	Grade      string    `json:"grade" bson:"grade"`
	Role       string    `json:"role" bson:"role"`
	ParentID   string    `json:"parentId,omitempty" bson:"parentId,omitempty"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// VoucherSuffix is the roll number, or the first six characters of the id
// when the student has none.
func (s *Student) VoucherSuffix() string {
	if s.RollNumber != "" {
		return s.RollNumber
	}
	if len(s.ID) > 6 {
		return s.ID[:6]
	}
	return s.ID
}
