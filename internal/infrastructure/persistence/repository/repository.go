package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/infrastructure/persistence/sqlite"
)

// Set bundles the SQLite implementations of every repository port
type Set struct {
	FeeStructures port.FeeStructureRepository
	Classes       port.ClassRepository
	Students      port.StudentRepository
	Vouchers      port.VoucherRepository
	Submissions   port.SubmissionRepository
	History       port.HistoryRepository
	Tx            port.TransactionManager
}

// NewSet builds all repositories over db
func NewSet(db *sqlite.DB) *Set {
	return &Set{
		FeeStructures: NewFeeStructureRepository(db.DB, db.Logger()),
		Classes:       NewClassRepository(db.DB, db.Logger()),
		Students:      NewStudentRepository(db.DB, db.Logger()),
		Vouchers:      NewVoucherRepository(db.DB, db.Logger()),
		Submissions:   NewSubmissionRepository(db.DB, db.Logger()),
		History:       NewHistoryRepository(db.DB, db.Logger()),
		Tx:            db,
	}
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// wrapInsertError maps unique index violations onto port.ErrDuplicate
func wrapInsertError(err error, what string) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%w: %s", port.ErrDuplicate, what)
	}
	return fmt.Errorf("failed to create %s: %w", what, err)
}

// placeholders returns "?, ?, ?" for n arguments
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// where joins conditions with AND, or returns "" when there are none
func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func utcOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
