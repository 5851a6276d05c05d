package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/labfolio/backend/pkg/config"
)

func TestSchemaFilesEmbedded(t *testing.T) {
	data, err := schemaFS.ReadFile("schema/001_init.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "PRIMARY KEY (factor_id, date)")
	assert.Contains(t, string(data), "NUMERIC(18, 6)")
}

func TestNewAndHealthCheck(t *testing.T) {
	// Skip if DATABASE_URL is not set
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	db, err := New(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	applied, err := db.EnsureSchema(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, applied)

	status, err := db.HealthCheck(ctx)
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Greater(t, status.Stats.MaxConns, int32(0))
}

func TestNewInvalidURL(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{URL: "://not a url"}}

	_, err := New(cfg)
	assert.Error(t, err)
}
