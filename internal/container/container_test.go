package container

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/school-fees/internal/application/service"
	"github.com/garyjia/school-fees/internal/config"
	"github.com/garyjia/school-fees/internal/domain/entity"
)

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		App:    config.AppConfig{Name: "school-fees", Env: "test"},
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080},
		Database: config.DatabaseConfig{
			Driver:       driver,
			Path:         filepath.Join(dir, "fees.db"),
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Auth: config.AuthConfig{
			Strategies: []string{"bearer"},
			JWTSecret:  "secret",
			JWTIssuer:  "school-fees",
			TokenTTL:   time.Hour,
		},
		Storage: config.StorageConfig{BaseDir: filepath.Join(dir, "uploads")},
		Fees:    config.FeesConfig{DefaultTuitionFee: 5000, DefaultOtherFee: 1000, DefaultDueDate: "15th"},
	}
}

func TestNewContainer_RejectsInvalidConfig(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	cfg := testConfig(t, "cassandra")
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	for _, driver := range []string{config.DriverMemory, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			c, err := NewContainer(testConfig(t, driver), zap.NewNop())
			require.NoError(t, err)

			ctx := context.Background()
			require.NoError(t, c.Start(ctx))
			assert.True(t, c.Ready())
			assert.Error(t, c.Start(ctx), "second start must fail")

			require.NotNil(t, c.Services())
			require.NotNil(t, c.Bearer())
			require.NotNil(t, c.Resolver())

			checks := c.HealthChecks()
			require.Contains(t, checks, "database")
			assert.NotContains(t, checks, "redis")
			for name, check := range checks {
				assert.NoError(t, check(ctx), name)
			}

			admin := &entity.Caller{ID: "admin-1", Role: entity.RoleAdmin}
			class, err := c.Services().Roster.CreateClass(ctx, admin, service.ClassInput{ID: "C1", Name: "5-A", Grade: "Grade 5"})
			require.NoError(t, err)
			_, err = c.Services().Roster.CreateStudent(ctx, admin, service.StudentInput{ID: "s1", Name: "Ayesha", RollNumber: "7", ClassID: class.ID})
			require.NoError(t, err)

			result, err := c.Services().Vouchers.Issue(ctx, admin, service.IssueRequest{ClassID: "C1", Month: "march-2025"})
			require.NoError(t, err)
			require.Len(t, result.Vouchers, 1)
			assert.Equal(t, "V-2025-03-7", result.Vouchers[0].VoucherNumber)

			history, err := c.Services().Vouchers.History(ctx, admin, result.Vouchers[0].ID)
			require.NoError(t, err)
			assert.Len(t, history, 1, "issuance is recorded through the dispatcher")

			require.NoError(t, c.Close())
			assert.False(t, c.Ready())
			assert.Error(t, c.Close())
			assert.Error(t, c.Start(ctx))
		})
	}
}

func TestContainer_DevModeResolvesAdmin(t *testing.T) {
	cfg := testConfig(t, config.DriverMemory)
	cfg.Auth.Strategies = nil
	cfg.Auth.DevMode = true
	cfg.Auth.DevAdminID = "local-admin"

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.Nil(t, c.Bearer())
	caller, err := c.Resolver().Resolve(httptestRequest(t))
	require.NoError(t, err)
	require.NotNil(t, caller)
	assert.Equal(t, "local-admin", caller.ID)
	assert.True(t, caller.IsAdmin())
}

func TestProvideAuth_SessionNeedsStore(t *testing.T) {
	_, _, err := ProvideAuth(&config.AuthConfig{Strategies: []string{"session"}}, nil)
	assert.Error(t, err)
}

func TestZapLoggerAdapter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	adapter := NewLoggerAdapter(zap.New(core))

	adapter.Info("Voucher issued", "voucher_id", "v-1", 42, "ignored", "count")
	adapter.Error("Issue failed", "error", errors.New("boom"))

	entries := logs.All()
	require.Len(t, entries, 2)

	fields := entries[0].ContextMap()
	assert.Equal(t, "v-1", fields["voucher_id"])
	assert.Len(t, fields, 1, "non-string keys and dangling keys are dropped")

	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func httptestRequest(t *testing.T) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodGet, "/fees/vouchers", nil)
}
