package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 90, cfg.Verification.MinScore)
	assert.True(t, cfg.Verification.Enabled)
	assert.Equal(t, 5, cfg.Orchestrator.WaitAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Orchestrator.WaitBaseDelay)
	assert.Equal(t, 2*time.Minute, cfg.Orchestrator.FallbackWindow)
	assert.Equal(t, "fixture", cfg.Registry.Source)
	assert.Equal(t, 10*time.Minute, cfg.Server.RetryAfter)

	// no DSN yet
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidInput)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
  dsn: /tmp/vc.db
verification:
  min_score: 80
orchestrator:
  fallback_window: 5m
`), 0o600))
	t.Setenv("VC_VERIFICATION_MIN_SCORE", "95")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 95, cfg.Verification.MinScore)
	assert.Equal(t, 5*time.Minute, cfg.Orchestrator.FallbackWindow)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		cfg.Database.DSN = "postgres://localhost/vc"
		return cfg
	}
	require.NoError(t, base().Validate())

	tests := map[string]func(c *Config){
		"driver":        func(c *Config) { c.Database.Driver = "mysql" },
		"min score":     func(c *Config) { c.Verification.MinScore = 101 },
		"http base url": func(c *Config) { c.Registry.Source = "http" },
		"source":        func(c *Config) { c.Registry.Source = "ldap" },
		"pg registry":   func(c *Config) { c.Registry.Source = "postgres"; c.Database.Driver = "sqlite" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			err := c.Validate()
			require.Error(t, err)
			var appErr *AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "CONFIG_ERROR", appErr.Code)
		})
	}
}

func TestToStatus(t *testing.T) {
	assert.NoError(t, ToStatus(nil))
	tests := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("vehicle: %w", ErrNotFound), codes.NotFound},
		{ErrInvalidInput, codes.InvalidArgument},
		{NewValidator().Field("plate_number", "???", PlateNumber).Error(), codes.InvalidArgument},
		{fmt.Errorf("request: %w", ErrConflict), codes.AlreadyExists},
		{errors.New("connection reset"), codes.Internal},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(ToStatus(tt.err)), tt.err.Error())
	}
}

func TestPlateNumber(t *testing.T) {
	for _, ok := range []string{"", "ABC 1234", "abc-123", "NAB4521"} {
		assert.Nil(t, PlateNumber("plate", ok), ok)
	}
	for _, bad := range []string{"A", "ABC 1234 5678", "ABC_123"} {
		assert.NotNil(t, PlateNumber("plate", bad), bad)
	}
	assert.NotNil(t, PlateNumber("plate", 42))
}

func TestLoggerFromContext(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	assert.NotEmpty(t, id)
	again, same := EnsureRequestID(ctx)
	assert.Equal(t, id, same)
	assert.Equal(t, ctx, again)

	vid := uuid.New()
	ctx = WithVehicleID(ctx, vid)
	got, ok := VehicleIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, vid, got)
	assert.NotNil(t, LoggerFromContext(ctx, nil))
}
