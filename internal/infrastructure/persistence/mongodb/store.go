package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/garyjia/school-fees/internal/application/port"
)

const (
	collFeeStructures = "fee_structures"
	collClasses       = "classes"
	collStudents      = "students"
	collVouchers      = "vouchers"
	collSubmissions   = "submissions"
	collHistory       = "voucher_history"
)

// Config holds MongoDB connection settings
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
	// Transactions requires a replica set; standalone servers run fn directly
	Transactions bool
}

// Store owns the client and hands out repositories over one database
type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	logger       *zap.Logger
	timeout      time.Duration
	transactions bool
}

// Connect dials MongoDB and pings the primary
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Info("MongoDB connection established", zap.String("database", cfg.Database))
	return &Store{
		client:       client,
		db:           client.Database(cfg.Database),
		logger:       logger,
		timeout:      timeout,
		transactions: cfg.Transactions,
	}, nil
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely on
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for coll, models := range indexModels() {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	s.logger.Info("MongoDB indexes ensured")
	return nil
}

func indexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		collFeeStructures: {
			{Keys: bson.D{{Key: "grade", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collStudents: {
			{Keys: bson.D{{Key: "classId", Value: 1}, {Key: "role", Value: 1}}},
			{Keys: bson.D{{Key: "grade", Value: 1}, {Key: "role", Value: 1}}},
		},
		collVouchers: {
			{Keys: bson.D{{Key: "studentId", Value: 1}, {Key: "month", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "classId", Value: 1}, {Key: "month", Value: 1}}},
		},
		collSubmissions: {
			{Keys: bson.D{{Key: "voucherId", Value: 1}}},
			{
				Keys: bson.D{{Key: "activeVoucherId", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"activeVoucherId": bson.M{"$exists": true}}),
			},
		},
		collHistory: {
			{Keys: bson.D{{Key: "voucherId", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
	}
}

// FeeStructures returns the fee structure repository
func (s *Store) FeeStructures() port.FeeStructureRepository {
	return &feeStructureRepo{coll: s.db.Collection(collFeeStructures), logger: s.logger}
}

// Classes returns the class repository
func (s *Store) Classes() port.ClassRepository {
	return &classRepo{coll: s.db.Collection(collClasses), logger: s.logger}
}

// Students returns the student repository
func (s *Store) Students() port.StudentRepository {
	return &studentRepo{coll: s.db.Collection(collStudents), logger: s.logger}
}

// Vouchers returns the voucher repository
func (s *Store) Vouchers() port.VoucherRepository {
	return &voucherRepo{coll: s.db.Collection(collVouchers), logger: s.logger}
}

// Submissions returns the submission repository
func (s *Store) Submissions() port.SubmissionRepository {
	return &submissionRepo{coll: s.db.Collection(collSubmissions), logger: s.logger}
}

// History returns the voucher history repository
func (s *Store) History() port.HistoryRepository {
	return &historyRepo{coll: s.db.Collection(collHistory), logger: s.logger}
}

// WithTransaction implements port.TransactionManager. Repositories take part
// in the transaction through the session context handed to fn.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions {
		return fn(ctx)
	}
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := s.client.StartSession()
	if err != nil {
		s.logger.Error("Failed to start session", zap.Error(err))
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// Ping checks the primary is reachable
func (s *Store) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(pingCtx, nil)
}

// Close disconnects the client
func (s *Store) Close(ctx context.Context) error {
	s.logger.Info("Closing MongoDB connection")
	return s.client.Disconnect(ctx)
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// wrapWriteError maps duplicate key errors onto port.ErrDuplicate
func wrapWriteError(err error, what string) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", port.ErrDuplicate, what)
	}
	return fmt.Errorf("failed to write %s: %w", what, err)
}

var _ port.TransactionManager = (*Store)(nil)
