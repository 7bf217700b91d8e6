package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
	"github.com/garyjia/school-fees/internal/infrastructure/persistence/memory"
)

func TestFeeStructureService_Create(t *testing.T) {
	total := 7000.0
	negative := -1.0

	tests := []struct {
		name      string
		caller    *entity.Caller
		input     FeeStructureInput
		wantTotal float64
		wantErr   func(t *testing.T, err error)
	}{
		{
			name:      "total defaults to sum",
			caller:    admin,
			input:     FeeStructureInput{Grade: "Grade 1", TuitionFee: 3000, OtherFee: 200, DueDate: "10th"},
			wantTotal: 3200,
		},
		{
			name:      "explicit total kept",
			caller:    admin,
			input:     FeeStructureInput{Grade: "Grade 2", TuitionFee: 3000, OtherFee: 200, TotalFee: &total},
			wantTotal: 7000,
		},
		{
			name:    "missing grade",
			caller:  admin,
			input:   FeeStructureInput{TuitionFee: 1},
			wantErr: func(t *testing.T, err error) { assertValidation(t, err, "grade is required") },
		},
		{
			name:    "negative fee",
			caller:  admin,
			input:   FeeStructureInput{Grade: "Grade 3", TuitionFee: -5},
			wantErr: func(t *testing.T, err error) { assertValidation(t, err, "tuitionFee must be >= 0") },
		},
		{
			name:    "negative total",
			caller:  admin,
			input:   FeeStructureInput{Grade: "Grade 3", TotalFee: &negative},
			wantErr: func(t *testing.T, err error) { assertValidation(t, err, "totalFee must be >= 0") },
		},
		{
			name:    "student forbidden",
			caller:  studentCaller("s1"),
			input:   FeeStructureInput{Grade: "Grade 4"},
			wantErr: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrForbidden) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewFeeStructureService(memory.NewStore().FeeStructures(), defaultFees, &mockLogger{})
			fs, err := svc.Create(context.Background(), tt.caller, tt.input)
			if tt.wantErr != nil {
				require.Error(t, err)
				tt.wantErr(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, fs.ID)
			assert.Equal(t, tt.wantTotal, fs.TotalFee)
		})
	}
}

func assertValidation(t *testing.T, err error, detail string) {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Contains(t, ve.Details, detail)
}

func TestFeeStructureService_DuplicateGrade(t *testing.T) {
	svc := NewFeeStructureService(memory.NewStore().FeeStructures(), defaultFees, &mockLogger{})
	ctx := context.Background()

	_, err := svc.Create(ctx, admin, FeeStructureInput{Grade: "Grade 5"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, admin, FeeStructureInput{Grade: " Grade 5 "})
	var ce *ConflictError
	assert.True(t, errors.As(err, &ce))
}

func TestFeeStructureService_UpdateAndDelete(t *testing.T) {
	svc := NewFeeStructureService(memory.NewStore().FeeStructures(), defaultFees, &mockLogger{})
	ctx := context.Background()

	fs, err := svc.Create(ctx, admin, FeeStructureInput{Grade: "Grade 5", TuitionFee: 100})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, admin, FeeStructureInput{ID: fs.ID, Grade: "Grade 5", TuitionFee: 200, OtherFee: 50})
	require.NoError(t, err)
	assert.Equal(t, 250.0, updated.TotalFee)

	_, err = svc.Update(ctx, admin, FeeStructureInput{ID: "missing", Grade: "Grade 5"})
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))

	_, err = svc.Update(ctx, admin, FeeStructureInput{Grade: "Grade 5"})
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))

	list, err := svc.List(ctx, teacher, "Grade 5")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, admin, fs.ID))
	assert.True(t, errors.As(svc.Delete(ctx, admin, fs.ID), &nf))

	list, err = svc.List(ctx, teacher, "Grade 5")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.List(ctx, nil, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestFeeStructureService_Resolve_LostRace(t *testing.T) {
	store := memory.NewStore()
	winner := &entity.FeeStructure{ID: "fs-winner", Grade: "Grade 5", TotalFee: 4200}
	lookups := 0

	repo := &mockFeeStructureRepo{
		FeeStructureRepository: store.FeeStructures(),
		getByGradeFunc: func(ctx context.Context, grade string) (*entity.FeeStructure, error) {
			lookups++
			if lookups == 1 {
				return nil, nil
			}
			return winner, nil
		},
		createFunc: func(ctx context.Context, fs *entity.FeeStructure) error {
			return fmt.Errorf("%w: grade", port.ErrDuplicate)
		},
	}
	svc := NewFeeStructureService(repo, defaultFees, &mockLogger{})

	fs, created, err := svc.Resolve(context.Background(), "Grade 5")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "fs-winner", fs.ID)
}

func TestFeeStructureService_Resolve_CreateFails(t *testing.T) {
	repo := &mockFeeStructureRepo{
		FeeStructureRepository: memory.NewStore().FeeStructures(),
		createFunc: func(ctx context.Context, fs *entity.FeeStructure) error {
			return errors.New("read-only database")
		},
	}
	logger := &mockLogger{}
	svc := NewFeeStructureService(repo, defaultFees, logger)

	_, _, err := svc.Resolve(context.Background(), "Grade 5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create default fee structure")
	assert.Len(t, logger.errors, 1)
}
