package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/school-fees/internal/application/dispatcher"
	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/application/service"
	"github.com/garyjia/school-fees/internal/auth"
	"github.com/garyjia/school-fees/internal/config"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and close in reverse order.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure
	store    *StoreBundle
	sessions *SessionBundle
	storage  *StorageBundle

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Interfaces
	resolver auth.Resolver
	bearer   *auth.Bearer

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Store and repositories
// 2. Session store (only when the session strategy is enabled)
// 3. Proof storage, inspector and exporter
// 4. Event dispatcher
// 5. Application services
// 6. Auth resolver chain
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization", zap.String("driver", c.config.Database.Driver))

	store, err := ProvideStore(ctx, &c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	c.store = store
	c.logger.Info("Store initialized")

	if c.config.Auth.Has("session") {
		sessions, err := ProvideSessions(ctx, &c.config.Redis, c.logger)
		if err != nil {
			c.rollback()
			return fmt.Errorf("failed to initialize sessions: %w", err)
		}
		c.sessions = sessions
		c.logger.Info("Session store initialized")
	}

	storageBundle, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		c.rollback()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.storage = storageBundle
	c.logger.Info("Storage initialized", zap.String("base_dir", c.config.Storage.BaseDir))

	c.dispatcher = ProvideDispatcher(c.store.History, c.logger)

	services, err := ProvideServices(&ServiceDeps{
		Store:      c.store,
		Storage:    c.storage,
		Dispatcher: c.dispatcher,
		Fees:       &c.config.Fees,
		Logger:     c.logger,
	})
	if err != nil {
		c.rollback()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services
	c.logger.Info("Application services initialized")

	var sessionStore port.SessionStore
	if c.sessions != nil {
		sessionStore = c.sessions.Store
	}
	resolver, bearer, err := ProvideAuth(&c.config.Auth, sessionStore)
	if err != nil {
		c.rollback()
		return fmt.Errorf("failed to initialize auth: %w", err)
	}
	c.resolver = resolver
	c.bearer = bearer
	if c.config.Auth.DevMode {
		c.logger.Warn("Auth dev mode is enabled; requests without credentials act as admin",
			zap.String("admin_id", c.config.Auth.DevAdminID))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// rollback releases whatever Start opened before failing
func (c *Container) rollback() {
	if c.sessions != nil {
		_ = c.sessions.Client.Close()
		c.sessions = nil
	}
	if c.store != nil {
		_ = c.store.Close(context.Background())
		c.store = nil
	}
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.sessions != nil {
		if err := c.sessions.Client.Close(); err != nil {
			c.logger.Error("Failed to close redis client", zap.Error(err))
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		} else {
			c.logger.Info("Redis client closed")
		}
	}

	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.store.Close(ctx)
		cancel()
		if err != nil {
			c.logger.Error("Failed to close store", zap.Error(err))
			errs = append(errs, fmt.Errorf("close store: %w", err))
		} else {
			c.logger.Info("Store closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// HealthChecks returns one check per external dependency, keyed by component name.
func (c *Container) HealthChecks() map[string]func(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	checks := map[string]func(ctx context.Context) error{}
	if c.store != nil {
		checks["database"] = c.store.Ping
	}
	if c.sessions != nil {
		checks["redis"] = c.sessions.Store.Ping
	}
	checks["dispatcher"] = func(context.Context) error {
		if c.dispatcher == nil {
			return fmt.Errorf("not initialized")
		}
		return nil
	}
	return checks
}

// Getters for accessing container components

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Resolver returns the auth resolver chain.
func (c *Container) Resolver() auth.Resolver {
	return c.resolver
}

// Bearer returns the bearer token strategy, or nil when it is disabled.
func (c *Container) Bearer() *auth.Bearer {
	return c.bearer
}

// Store returns the configured repositories.
func (c *Container) Store() *StoreBundle {
	return c.store
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the key/value Logger interfaces
// used by services, the dispatcher and the HTTP layer.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

// NewLoggerAdapter wraps logger for packages that log with key/value pairs.
func NewLoggerAdapter(logger *zap.Logger) service.Logger {
	return &zapLoggerAdapter{logger: logger}
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
