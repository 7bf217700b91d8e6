package mongodb

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
)

func voucherQuery(f port.VoucherFilter) bson.M {
	q := bson.M{}
	if f.StudentID != "" {
		q["studentId"] = f.StudentID
	}
	if f.ClassID != "" {
		q["classId"] = f.ClassID
	}
	if f.Month != "" {
		q["month"] = f.Month
	}
	return q
}

func submissionQuery(f port.SubmissionFilter) bson.M {
	q := bson.M{}
	if f.VoucherID != "" {
		q["voucherId"] = f.VoucherID
	}
	if f.StudentID != "" {
		q["studentId"] = f.StudentID
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	return q
}

func studentQuery(field, value string) bson.M {
	return bson.M{field: value, "role": entity.RoleStudent}
}

func pendingQuery(voucherIDs []string) bson.M {
	return bson.M{
		"voucherId": bson.M{"$in": voucherIDs},
		"status":    entity.SubmissionStatusPending,
	}
}

// pendingDecisionFilter matches the submission only while it is still Pending,
// so of two racing decisions the second matches nothing
func pendingDecisionFilter(id string) bson.M {
	return bson.M{"_id": id, "status": entity.SubmissionStatusPending}
}

// decisionUpdate writes a verification outcome. activeVoucherId is what the
// partial unique index keys on, so it is dropped once a submission is rejected.
func decisionUpdate(sub *entity.Submission) bson.M {
	set := bson.M{
		"status":        sub.Status,
		"receiptNumber": sub.ReceiptNumber,
		"verifiedBy":    sub.VerifiedBy,
		"remarks":       sub.Remarks,
	}
	if sub.VerifiedAt != nil {
		set["verifiedAt"] = *sub.VerifiedAt
	}

	update := bson.M{"$set": set}
	if sub.IsActive() {
		set["activeVoucherId"] = sub.VoucherID
	} else {
		update["$unset"] = bson.M{"activeVoucherId": ""}
	}
	return update
}
