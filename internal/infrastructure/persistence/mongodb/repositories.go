package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
)

// findOne decodes the first match into out, reporting false when nothing matches
func findOne(ctx context.Context, coll *mongo.Collection, filter interface{}, out interface{}) (bool, error) {
	err := coll.FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts *options.FindOptions) ([]*T, error) {
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []*T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortBy(keys ...bson.E) *options.FindOptions {
	return options.Find().SetSort(bson.D(keys))
}

type feeStructureRepo struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

func (r *feeStructureRepo) Create(ctx context.Context, fs *entity.FeeStructure) error {
	newID(&fs.ID)
	if _, err := r.coll.InsertOne(ctx, fs); err != nil {
		r.logger.Error("Failed to create fee structure", zap.String("grade", fs.Grade), zap.Error(err))
		return wrapWriteError(err, "fee structure for grade "+fs.Grade)
	}
	return nil
}

func (r *feeStructureRepo) GetByID(ctx context.Context, id string) (*entity.FeeStructure, error) {
	return r.getOne(ctx, bson.M{"_id": id})
}

func (r *feeStructureRepo) GetByGrade(ctx context.Context, grade string) (*entity.FeeStructure, error) {
	return r.getOne(ctx, bson.M{"grade": grade})
}

func (r *feeStructureRepo) getOne(ctx context.Context, filter bson.M) (*entity.FeeStructure, error) {
	var fs entity.FeeStructure
	found, err := findOne(ctx, r.coll, filter, &fs)
	if err != nil {
		r.logger.Error("Failed to get fee structure", zap.Any("filter", filter), zap.Error(err))
		return nil, fmt.Errorf("failed to get fee structure: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &fs, nil
}

func (r *feeStructureRepo) List(ctx context.Context) ([]*entity.FeeStructure, error) {
	out, err := findAll[entity.FeeStructure](ctx, r.coll, bson.M{}, sortBy(bson.E{Key: "grade", Value: 1}))
	if err != nil {
		r.logger.Error("Failed to list fee structures", zap.Error(err))
		return nil, fmt.Errorf("failed to list fee structures: %w", err)
	}
	return out, nil
}

func (r *feeStructureRepo) Update(ctx context.Context, fs *entity.FeeStructure) error {
	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": fs.ID}, fs)
	if err != nil {
		r.logger.Error("Failed to update fee structure", zap.String("id", fs.ID), zap.Error(err))
		return wrapWriteError(err, "fee structure for grade "+fs.Grade)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("fee structure %s not found", fs.ID)
	}
	return nil
}

func (r *feeStructureRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		r.logger.Error("Failed to delete fee structure", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete fee structure: %w", err)
	}
	return nil
}

type classRepo struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

func (r *classRepo) Create(ctx context.Context, class *entity.Class) error {
	newID(&class.ID)
	if _, err := r.coll.InsertOne(ctx, class); err != nil {
		r.logger.Error("Failed to create class", zap.String("name", class.Name), zap.Error(err))
		return wrapWriteError(err, "class "+class.ID)
	}
	return nil
}

func (r *classRepo) GetByID(ctx context.Context, id string) (*entity.Class, error) {
	var class entity.Class
	found, err := findOne(ctx, r.coll, bson.M{"_id": id}, &class)
	if err != nil {
		r.logger.Error("Failed to get class", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get class: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &class, nil
}

func (r *classRepo) List(ctx context.Context) ([]*entity.Class, error) {
	out, err := findAll[entity.Class](ctx, r.coll, bson.M{},
		sortBy(bson.E{Key: "name", Value: 1}, bson.E{Key: "_id", Value: 1}))
	if err != nil {
		r.logger.Error("Failed to list classes", zap.Error(err))
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	return out, nil
}

type studentRepo struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

func (r *studentRepo) Create(ctx context.Context, student *entity.Student) error {
	newID(&student.ID)
	if _, err := r.coll.InsertOne(ctx, student); err != nil {
		r.logger.Error("Failed to create student", zap.String("name", student.Name), zap.Error(err))
		return wrapWriteError(err, "student "+student.ID)
	}
	return nil
}

func (r *studentRepo) GetByID(ctx context.Context, id string) (*entity.Student, error) {
	var student entity.Student
	found, err := findOne(ctx, r.coll, bson.M{"_id": id}, &student)
	if err != nil {
		r.logger.Error("Failed to get student", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &student, nil
}

func (r *studentRepo) ListByClass(ctx context.Context, classID string) ([]*entity.Student, error) {
	return r.list(ctx, studentQuery("classId", classID))
}

func (r *studentRepo) ListByGrade(ctx context.Context, grade string) ([]*entity.Student, error) {
	return r.list(ctx, studentQuery("grade", grade))
}

func (r *studentRepo) list(ctx context.Context, filter bson.M) ([]*entity.Student, error) {
	out, err := findAll[entity.Student](ctx, r.coll, filter,
		sortBy(bson.E{Key: "rollNumber", Value: 1}, bson.E{Key: "_id", Value: 1}))
	if err != nil {
		r.logger.Error("Failed to list students", zap.Any("filter", filter), zap.Error(err))
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return out, nil
}

type voucherRepo struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

func (r *voucherRepo) Create(ctx context.Context, v *entity.Voucher) error {
	newID(&v.ID)
	if _, err := r.coll.InsertOne(ctx, v); err != nil {
		r.logger.Error("Failed to create voucher",
			zap.String("student_id", v.StudentID),
			zap.String("month", v.Month),
			zap.Error(err))
		return wrapWriteError(err, fmt.Sprintf("voucher for student %s month %s", v.StudentID, v.Month))
	}
	return nil
}

func (r *voucherRepo) GetByID(ctx context.Context, id string) (*entity.Voucher, error) {
	return r.getOne(ctx, bson.M{"_id": id})
}

func (r *voucherRepo) FindByStudentAndMonth(ctx context.Context, studentID, month string) (*entity.Voucher, error) {
	return r.getOne(ctx, bson.M{"studentId": studentID, "month": month})
}

func (r *voucherRepo) getOne(ctx context.Context, filter bson.M) (*entity.Voucher, error) {
	var v entity.Voucher
	found, err := findOne(ctx, r.coll, filter, &v)
	if err != nil {
		r.logger.Error("Failed to get voucher", zap.Any("filter", filter), zap.Error(err))
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &v, nil
}

func (r *voucherRepo) List(ctx context.Context, filter port.VoucherFilter) ([]*entity.Voucher, error) {
	out, err := findAll[entity.Voucher](ctx, r.coll, voucherQuery(filter),
		sortBy(bson.E{Key: "createdAt", Value: -1}, bson.E{Key: "voucherNumber", Value: 1}))
	if err != nil {
		r.logger.Error("Failed to list vouchers", zap.Error(err))
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	return out, nil
}

func (r *voucherRepo) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		r.logger.Error("Failed to update voucher status", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update voucher status: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("voucher %s not found", id)
	}
	return nil
}

func (r *voucherRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		r.logger.Error("Failed to delete voucher", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete voucher: %w", err)
	}
	return nil
}

// submissionDoc carries the key of the partial unique index alongside the entity
type submissionDoc struct {
	entity.Submission `bson:",inline"`
	ActiveVoucherID   string `bson:"activeVoucherId,omitempty"`
}

type submissionRepo struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

func (r *submissionRepo) Create(ctx context.Context, sub *entity.Submission) error {
	newID(&sub.ID)
	doc := submissionDoc{Submission: *sub}
	if sub.IsActive() {
		doc.ActiveVoucherID = sub.VoucherID
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		r.logger.Error("Failed to create submission", zap.String("voucher_id", sub.VoucherID), zap.Error(err))
		return wrapWriteError(err, "active submission for voucher "+sub.VoucherID)
	}
	return nil
}

func (r *submissionRepo) GetByID(ctx context.Context, id string) (*entity.Submission, error) {
	return r.getOne(ctx, bson.M{"_id": id})
}

func (r *submissionRepo) GetActiveByVoucherID(ctx context.Context, voucherID string) (*entity.Submission, error) {
	return r.getOne(ctx, bson.M{"activeVoucherId": voucherID})
}

func (r *submissionRepo) getOne(ctx context.Context, filter bson.M) (*entity.Submission, error) {
	var doc submissionDoc
	found, err := findOne(ctx, r.coll, filter, &doc)
	if err != nil {
		r.logger.Error("Failed to get submission", zap.Any("filter", filter), zap.Error(err))
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &doc.Submission, nil
}

func (r *submissionRepo) List(ctx context.Context, filter port.SubmissionFilter) ([]*entity.Submission, error) {
	docs, err := findAll[submissionDoc](ctx, r.coll, submissionQuery(filter),
		sortBy(bson.E{Key: "submissionDate", Value: -1}))
	if err != nil {
		r.logger.Error("Failed to list submissions", zap.Error(err))
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	out := make([]*entity.Submission, 0, len(docs))
	for _, doc := range docs {
		out = append(out, &doc.Submission)
	}
	return out, nil
}

func (r *submissionRepo) PendingVoucherIDs(ctx context.Context, voucherIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(voucherIDs) == 0 {
		return out, nil
	}

	ids, err := r.coll.Distinct(ctx, "voucherId", pendingQuery(voucherIDs))
	if err != nil {
		r.logger.Error("Failed to query pending submissions", zap.Error(err))
		return nil, fmt.Errorf("failed to query pending submissions: %w", err)
	}
	for _, id := range ids {
		if s, ok := id.(string); ok {
			out[s] = true
		}
	}
	return out, nil
}

func (r *submissionRepo) UpdateDecision(ctx context.Context, sub *entity.Submission) error {
	result, err := r.coll.UpdateOne(ctx, pendingDecisionFilter(sub.ID), decisionUpdate(sub))
	if err != nil {
		r.logger.Error("Failed to update submission decision", zap.String("id", sub.ID), zap.Error(err))
		return fmt.Errorf("failed to update submission: %w", err)
	}
	if result.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": sub.ID})
		if err != nil {
			return fmt.Errorf("failed to read submission: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("submission %s not found", sub.ID)
		}
		return fmt.Errorf("%w: submission %s", port.ErrAlreadyDecided, sub.ID)
	}
	return nil
}

type historyRepo struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

func (r *historyRepo) Create(ctx context.Context, h *entity.VoucherHistory) error {
	newID(&h.ID)
	if _, err := r.coll.InsertOne(ctx, h); err != nil {
		r.logger.Error("Failed to create history record", zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}
	return nil
}

func (r *historyRepo) GetByVoucherID(ctx context.Context, voucherID string) ([]*entity.VoucherHistory, error) {
	out, err := findAll[entity.VoucherHistory](ctx, r.coll, bson.M{"voucherId": voucherID},
		sortBy(bson.E{Key: "timestamp", Value: 1}))
	if err != nil {
		r.logger.Error("Failed to get history records", zap.String("voucher_id", voucherID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return out, nil
}

var (
	_ port.FeeStructureRepository = (*feeStructureRepo)(nil)
	_ port.ClassRepository        = (*classRepo)(nil)
	_ port.StudentRepository      = (*studentRepo)(nil)
	_ port.VoucherRepository      = (*voucherRepo)(nil)
	_ port.SubmissionRepository   = (*submissionRepo)(nil)
	_ port.HistoryRepository      = (*historyRepo)(nil)
)
