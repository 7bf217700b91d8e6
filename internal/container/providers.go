// Package container provides dependency injection and lifecycle management
// for the school fee service.
package container

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/garyjia/school-fees/internal/application/dispatcher"
	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/application/service"
	"github.com/garyjia/school-fees/internal/auth"
	"github.com/garyjia/school-fees/internal/config"
	"github.com/garyjia/school-fees/internal/infrastructure/export"
	"github.com/garyjia/school-fees/internal/infrastructure/persistence/memory"
	"github.com/garyjia/school-fees/internal/infrastructure/persistence/mongodb"
	"github.com/garyjia/school-fees/internal/infrastructure/persistence/repository"
	"github.com/garyjia/school-fees/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/school-fees/internal/infrastructure/proof"
	"github.com/garyjia/school-fees/internal/infrastructure/session"
	"github.com/garyjia/school-fees/internal/infrastructure/storage"
	"github.com/garyjia/school-fees/pkg/database"
)

// StoreBundle holds the repositories of whichever driver is configured.
type StoreBundle struct {
	FeeStructures port.FeeStructureRepository
	Classes       port.ClassRepository
	Students      port.StudentRepository
	Vouchers      port.VoucherRepository
	Submissions   port.SubmissionRepository
	History       port.HistoryRepository
	Tx            port.TransactionManager

	Ping  func(ctx context.Context) error
	Close func(ctx context.Context) error
}

// SessionBundle holds the Redis client backing cookie sessions.
type SessionBundle struct {
	Client *redis.Client
	Store  *session.RedisStore
}

// StorageBundle holds proof storage and inspection.
type StorageBundle struct {
	FileStorage port.FileStorage
	Inspector   port.ProofInspector
	Exporter    port.VoucherExporter
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	FeeStructures service.FeeStructureService
	Roster        service.RosterService
	Vouchers      service.VoucherService
	Payments      service.PaymentService
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Store      *StoreBundle
	Storage    *StorageBundle
	Dispatcher dispatcher.Dispatcher
	Fees       *config.FeesConfig
	Logger     *zap.Logger
}

// ProvideStore opens the configured store and prepares its schema.
func ProvideStore(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*StoreBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Driver {
	case config.DriverSQLite:
		return provideSQLite(cfg, logger)
	case config.DriverMongo:
		return provideMongo(ctx, cfg, logger)
	case config.DriverMemory:
		logger.Warn("Using in-memory store; data is lost on restart")
		store := memory.NewStore()
		return &StoreBundle{
			FeeStructures: store.FeeStructures(),
			Classes:       store.Classes(),
			Students:      store.Students(),
			Vouchers:      store.Vouchers(),
			Submissions:   store.Submissions(),
			History:       store.History(),
			Tx:            store,
			Ping:          store.Ping,
			Close:         func(context.Context) error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func provideSQLite(cfg *config.DatabaseConfig, logger *zap.Logger) (*StoreBundle, error) {
	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Run(database.Schema()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	set := repository.NewSet(sqlite.NewDB(db.DB, logger))
	return &StoreBundle{
		FeeStructures: set.FeeStructures,
		Classes:       set.Classes,
		Students:      set.Students,
		Vouchers:      set.Vouchers,
		Submissions:   set.Submissions,
		History:       set.History,
		Tx:            set.Tx,
		Ping:          db.PingContext,
		Close:         func(context.Context) error { return db.Close() },
	}, nil
}

func provideMongo(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*StoreBundle, error) {
	store, err := mongodb.Connect(ctx, mongodb.Config{
		URI:          cfg.Mongo.URI,
		Database:     cfg.Mongo.Database,
		Timeout:      cfg.Mongo.Timeout,
		Transactions: cfg.Mongo.Transactions,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := store.EnsureIndexes(ctx); err != nil {
		_ = store.Close(context.Background())
		return nil, err
	}

	return &StoreBundle{
		FeeStructures: store.FeeStructures(),
		Classes:       store.Classes(),
		Students:      store.Students(),
		Vouchers:      store.Vouchers(),
		Submissions:   store.Submissions(),
		History:       store.History(),
		Tx:            store,
		Ping:          store.Ping,
		Close:         store.Close,
	}, nil
}

// ProvideSessions connects to Redis for the session strategy.
func ProvideSessions(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) (*SessionBundle, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Connected to Redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &SessionBundle{
		Client: client,
		Store:  session.NewRedisStore(client, cfg.SessionPrefix, logger),
	}, nil
}

// ProvideStorage creates proof storage, the proof inspector and the exporter.
func ProvideStorage(cfg *config.StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}

	return &StorageBundle{
		FileStorage: storage.NewLocalFileStorage(cfg.BaseDir, logger),
		Inspector: proof.NewInspector(proof.Config{
			MaxBytes:     cfg.MaxProofBytes,
			PreviewWidth: cfg.PreviewWidth,
		}, logger),
		Exporter: export.NewVoucherSheet(logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher and registers the history recorder.
func ProvideDispatcher(history port.HistoryRepository, logger *zap.Logger) dispatcher.Dispatcher {
	adapter := &zapLoggerAdapter{logger: logger.Named("dispatcher")}
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(adapter))
	service.NewHistoryRecorder(history, &zapLoggerAdapter{logger: logger}).Register(d)
	return d
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Store == nil || deps.Storage == nil {
		return nil, fmt.Errorf("store and storage are required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	logger := &zapLoggerAdapter{logger: deps.Logger}
	s := deps.Store

	fees := service.NewFeeStructureService(s.FeeStructures, service.FeeDefaults{
		TuitionFee: deps.Fees.DefaultTuitionFee,
		OtherFee:   deps.Fees.DefaultOtherFee,
		DueDate:    deps.Fees.DefaultDueDate,
	}, logger)

	return &ServiceBundle{
		FeeStructures: fees,
		Roster:        service.NewRosterService(s.Classes, s.Students, logger),
		Vouchers: service.NewVoucherService(
			s.Classes,
			s.Students,
			s.Vouchers,
			s.Submissions,
			s.History,
			fees,
			deps.Storage.Exporter,
			deps.Dispatcher,
			logger,
		),
		Payments: service.NewPaymentService(
			s.Vouchers,
			s.Submissions,
			s.Tx,
			deps.Storage.FileStorage,
			deps.Storage.Inspector,
			deps.Dispatcher,
			logger,
		),
	}, nil
}

// ProvideAuth builds the resolver chain in configured order. Dev mode, when
// enabled, is tried last so real credentials still win.
func ProvideAuth(cfg *config.AuthConfig, sessions port.SessionStore) (auth.Resolver, *auth.Bearer, error) {
	var chain auth.Chain
	var bearer *auth.Bearer

	for _, strategy := range cfg.Strategies {
		switch strings.ToLower(strategy) {
		case "bearer":
			bearer = auth.NewBearer(cfg.JWTSecret, cfg.JWTIssuer)
			chain = append(chain, bearer)
		case "session":
			if sessions == nil {
				return nil, nil, fmt.Errorf("session strategy requires a session store")
			}
			chain = append(chain, auth.NewSession(sessions, cfg.SessionCookie))
		default:
			return nil, nil, fmt.Errorf("unknown auth strategy %q", strategy)
		}
	}
	if cfg.DevMode {
		chain = append(chain, auth.NewDev(cfg.DevAdminID))
	}
	return chain, bearer, nil
}
