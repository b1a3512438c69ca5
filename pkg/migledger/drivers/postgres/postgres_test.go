package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migledger/pkg/migledger"
)

// Тесты требуют живую БД: MIGLEDGER_TEST_POSTGRES_DSN.
// These tests need a live database: MIGLEDGER_TEST_POSTGRES_DSN.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MIGLEDGER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MIGLEDGER_TEST_POSTGRES_DSN not set")
	}
	return dsn
}

func TestGateway_Ledger(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	for _, driver := range []string{migledger.SQLDriverPQ, migledger.SQLDriverPgx} {
		t.Run(driver, func(t *testing.T) {
			gw, err := Open(ctx, driver, dsn)
			require.NoError(t, err)
			defer gw.Close()

			_, err = gw.DB().ExecContext(ctx, "DROP TABLE IF EXISTS "+migledger.LedgerTable)
			require.NoError(t, err)

			exists, err := gw.TableExists(ctx)
			require.NoError(t, err)
			assert.False(t, exists)

			require.NoError(t, gw.CreateTable(ctx))
			exists, err = gw.TableExists(ctx)
			require.NoError(t, err)
			assert.True(t, exists)

			require.NoError(t, gw.InsertTag(ctx, "20230101000000_init"))
			assert.Error(t, gw.InsertTag(ctx, "20230101000000_init"))

			tags, err := gw.AppliedTags(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"20230101000000_init"}, tags)

			require.NoError(t, gw.ExecScript(ctx, migledger.Script{
				Statement: "CREATE TABLE IF NOT EXISTS migledger_scratch (id INT); DROP TABLE migledger_scratch;",
			}))

			require.NoError(t, gw.DeleteTag(ctx, "20230101000000_init"))
			tags, err = gw.AppliedTags(ctx)
			require.NoError(t, err)
			assert.Empty(t, tags)

			_, err = gw.DB().ExecContext(ctx, "DROP TABLE "+migledger.LedgerTable)
			require.NoError(t, err)
		})
	}
}

func TestGateway_TableExistsIgnoresOtherSchemas(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	gw, err := Open(ctx, migledger.SQLDriverPQ, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })

	_, err = gw.DB().ExecContext(ctx, "DROP TABLE IF EXISTS "+migledger.LedgerTable)
	require.NoError(t, err)
	_, err = gw.DB().ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS migledger_other; "+
		"CREATE TABLE IF NOT EXISTS migledger_other."+migledger.LedgerTable+" (tag TEXT UNIQUE)")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = gw.DB().ExecContext(context.Background(), "DROP SCHEMA migledger_other CASCADE")
	})

	exists, err := gw.TableExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}
