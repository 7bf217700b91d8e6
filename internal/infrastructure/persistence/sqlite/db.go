package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

type txKey struct{}

// DefaultBusyRetries bounds how often a transaction is restarted after the
// database reported it busy or locked
const DefaultBusyRetries = 3

// DB runs repository work on a shared sqlite handle and owns the
// transaction a payment decision executes in
type DB struct {
	*sql.DB
	logger      *zap.Logger
	busyRetries int
	backoff     time.Duration
}

// NewDB creates a new database wrapper
func NewDB(sqlDB *sql.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:          sqlDB,
		logger:      logger,
		busyRetries: DefaultBusyRetries,
		backoff:     50 * time.Millisecond,
	}
}

// Logger returns the logger repositories built over db should use
func (db *DB) Logger() *zap.Logger {
	return db.logger
}

// WithTransaction implements port.TransactionManager. Nested calls join the
// transaction already carried by ctx. An outermost transaction that fails
// because another writer holds the database is restarted from the top.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if extractTx(ctx) != nil {
		return fn(ctx)
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = db.runTx(ctx, fn)
		if err == nil || !IsBusy(err) || attempt >= db.busyRetries {
			return err
		}

		db.logger.Info("Database busy, retrying transaction",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(db.backoff * time.Duration(attempt+1)):
		}
	}
}

func (db *DB) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsBusy reports whether err is sqlite refusing work because another
// connection holds the lock
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

func extractTx(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ExecutorFrom returns the transaction started by WithTransaction when ctx
// carries one, otherwise db.
func ExecutorFrom(ctx context.Context, db *sql.DB) Executor {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return db
}

var _ port.TransactionManager = (*DB)(nil)
