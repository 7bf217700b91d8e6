package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/garyjia/school-fees/internal/application/dispatcher"
	"github.com/garyjia/school-fees/internal/domain/entity"
	"github.com/garyjia/school-fees/internal/infrastructure/persistence/memory"
)

var (
	admin   = &entity.Caller{ID: "admin-1", Role: entity.RoleAdmin, Name: "Admin"}
	teacher = &entity.Caller{ID: "teacher-1", Role: entity.RoleTeacher, Name: "Teacher"}
	parent  = &entity.Caller{ID: "parent-1", Role: entity.RoleParent, Name: "Parent"}
)

func studentCaller(id string) *entity.Caller {
	return &entity.Caller{ID: id, Role: entity.RoleStudent, Name: "Student " + id}
}

type fixture struct {
	store      *memory.Store
	logger     *mockLogger
	storage    *mockStorage
	inspector  *mockInspector
	exporter   *mockExporter
	tx         *mockTxManager
	dispatcher dispatcher.Dispatcher
	fees       FeeStructureService
	vouchers   VoucherService
	payments   PaymentService
	roster     RosterService
}

var defaultFees = FeeDefaults{TuitionFee: 5000, OtherFee: 1000, DueDate: "15th of every month"}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     memory.NewStore(),
		logger:    &mockLogger{},
		storage:   newMockStorage(),
		inspector: &mockInspector{},
		exporter:  &mockExporter{},
		tx:        &mockTxManager{},
	}
	f.dispatcher = dispatcher.NewDispatcher(dispatcher.WithLogger(f.logger))
	NewHistoryRecorder(f.store.History(), f.logger).Register(f.dispatcher)

	f.fees = NewFeeStructureService(f.store.FeeStructures(), defaultFees, f.logger)
	f.roster = NewRosterService(f.store.Classes(), f.store.Students(), f.logger)
	f.build()
	return f
}

func (f *fixture) build() {
	f.vouchers = NewVoucherService(
		f.store.Classes(), f.store.Students(), f.store.Vouchers(), f.store.Submissions(),
		f.store.History(), f.fees, f.exporter, f.dispatcher, f.logger,
	)
	f.payments = NewPaymentService(
		f.store.Vouchers(), f.store.Submissions(), f.tx, f.storage, f.inspector, f.dispatcher, f.logger,
	)
}

// seedClass stores class C1 ("Grade 5") with three students s1..s3, rolls 1..3
func (f *fixture) seedClass(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := f.roster.CreateClass(ctx, admin, ClassInput{ID: "C1", Name: "5-A", Grade: "Grade 5"})
	require.NoError(t, err)
	for i, id := range []string{"s1", "s2", "s3"} {
		in := StudentInput{ID: id, Name: "Student " + id, RollNumber: string(rune('1' + i)), ClassID: "C1"}
		if id == "s1" {
			in.ParentID = parent.ID
		}
		_, err := f.roster.CreateStudent(ctx, admin, in)
		require.NoError(t, err)
	}
}

func (f *fixture) issue(t *testing.T, month string) *IssueResult {
	t.Helper()
	res, err := f.vouchers.Issue(context.Background(), admin, IssueRequest{ClassID: "C1", Month: month})
	require.NoError(t, err)
	return res
}

func (f *fixture) setNow(now time.Time) {
	f.vouchers.(*voucherServiceImpl).now = func() time.Time { return now }
	f.payments.(*paymentServiceImpl).now = func() time.Time { return now }
}

func voucherFor(t *testing.T, res *IssueResult, studentID string) *entity.Voucher {
	t.Helper()
	for _, v := range res.Vouchers {
		if v.StudentID == studentID {
			return v
		}
	}
	t.Fatalf("no voucher for %s", studentID)
	return nil
}
