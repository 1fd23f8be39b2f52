package storage

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taply/backend/internal/models"
)

func TestPostgresStoreContract(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("set TEST_DATABASE_URL to run postgres tests")
	}

	runStoreContract(t, func(t *testing.T) AccountStore {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		table := "accounts_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
		s, err := NewPostgresStore(ctx, dsn, table)
		require.NoError(t, err)
		require.NoError(t, s.Migrate(ctx))
		t.Cleanup(func() {
			_, _ = s.db.Exec(`DROP TABLE IF EXISTS ` + pq.QuoteIdentifier(table))
			_ = s.Close(context.Background())
		})
		return s
	})
}

func TestPostgresStore_MigrateIsIdempotent(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("set TEST_DATABASE_URL to run postgres tests")
	}
	ctx := context.Background()

	table := "accounts_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	s, err := NewPostgresStore(ctx, dsn, table)
	require.NoError(t, err)
	defer func() {
		_, _ = s.db.Exec(`DROP TABLE IF EXISTS ` + pq.QuoteIdentifier(table))
		_ = s.Close(ctx)
	}()

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))
}

func TestMongoStoreContract(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("set TEST_MONGO_URI to run mongo tests")
	}

	runStoreContract(t, func(t *testing.T) AccountStore {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		dbName := "taply_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
		s, err := NewMongoStore(ctx, uri, dbName)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = s.accounts.Database().Drop(context.Background())
			_ = s.Close(context.Background())
		})
		return s
	})
}

func TestMongoStore_RejectsUnsafeLinkIDs(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("set TEST_MONGO_URI to run mongo tests")
	}
	ctx := context.Background()

	dbName := "taply_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	s, err := NewMongoStore(ctx, uri, dbName)
	require.NoError(t, err)
	defer func() {
		_ = s.accounts.Database().Drop(ctx)
		_ = s.Close(ctx)
	}()

	require.NoError(t, s.CreateAccount(ctx, newAccount("m@x.com", "em")))
	assert.ErrorIs(t, s.UpdateAnalytics(ctx, "em", models.LinkClick("a.b")), ErrInvalid)
	assert.ErrorIs(t, s.UpdateAnalytics(ctx, "em", models.LinkClick("$set")), ErrInvalid)
}

func TestValidMongoKey(t *testing.T) {
	assert.True(t, validMongoKey("3f2c-link"))
	assert.False(t, validMongoKey(""))
	assert.False(t, validMongoKey("a.b"))
	assert.False(t, validMongoKey("$where"))
}
