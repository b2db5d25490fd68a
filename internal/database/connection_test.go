package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqliteDSNCarriesBusyTimeout(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "plain path gets the timeout appended",
			cfg:  DatabaseConfig{Driver: "sqlite", Path: "orders.sqlite", BusyTimeoutMS: 3000},
			want: "orders.sqlite?_busy_timeout=3000",
		},
		{
			name: "existing query string is extended",
			cfg:  DatabaseConfig{Driver: "sqlite", Path: "orders.sqlite?cache=shared", BusyTimeoutMS: 1500},
			want: "orders.sqlite?cache=shared&_busy_timeout=1500",
		},
		{
			name: "explicit timeout in the path wins",
			cfg:  DatabaseConfig{Driver: "sqlite", Path: "orders.sqlite?_busy_timeout=500", BusyTimeoutMS: 3000},
			want: "orders.sqlite?_busy_timeout=500",
		},
		{
			name: "zero timeout leaves the path untouched",
			cfg:  DatabaseConfig{Driver: "sqlite", Path: "orders.sqlite"},
			want: "orders.sqlite",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteDSN(tt.cfg))
		})
	}
}

func TestInitDatabaseAppliesConfiguredPool(t *testing.T) {
	db, err := InitDatabase(DatabaseConfig{
		Driver:          "sqlite",
		Path:            ":memory:",
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 4, sqlDB.Stats().MaxOpenConnections)
}

func TestInitDatabaseDefaultsPool(t *testing.T) {
	db, err := InitDatabase(DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxOpenConns, sqlDB.Stats().MaxOpenConnections)
}

func TestInitDatabaseRejectsUnknownDriver(t *testing.T) {
	_, err := InitDatabase(DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}
