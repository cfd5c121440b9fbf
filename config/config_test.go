package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-in-taipei/tutors-assistant/ledger"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, int64(ledger.DefaultMaxHours), cfg.MaxHoursPerTransaction)
	assert.False(t, cfg.EnforceBalanceFloor)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TUTORS_PORT", "9000")
	t.Setenv("TUTORS_STORE_DRIVER", "memory")
	t.Setenv("TUTORS_ENFORCE_BALANCE_FLOOR", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.True(t, cfg.EnforceBalanceFloor)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("TUTORS_STORE_DRIVER", "dynamo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("TUTORS_STORE_DRIVER", "postgres")
	t.Setenv("TUTORS_POSTGRES_DSN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TUTORS_POSTGRES_DSN")
}
