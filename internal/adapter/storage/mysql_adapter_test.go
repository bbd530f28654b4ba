package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/marketplace-cart/internal/port"
)

func getMySQLAdapter(t *testing.T) (*MySQLAdapter, *sql.DB) {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/marketplace?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	adapter := NewMySQLAdapter(db)
	require.NoError(t, adapter.Migrate(context.Background()))
	return adapter, db
}

func TestMySQLGet_NotFound(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	ctx := context.Background()

	db.ExecContext(ctx, `DELETE FROM cart_slots WHERE slot_key = 'test-missing'`)

	_, err := adapter.Get(ctx, "test-missing")
	assert.ErrorIs(t, err, port.ErrSlotNotFound)
}

func TestMySQLSetGet(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	ctx := context.Background()
	key := "test-cart"

	db.ExecContext(ctx, `DELETE FROM cart_slots WHERE slot_key = ?`, key)
	defer db.ExecContext(ctx, `DELETE FROM cart_slots WHERE slot_key = ?`, key)

	require.NoError(t, adapter.Set(ctx, key, []byte(`[{"id":"p1","quantity":1}]`)))
	require.NoError(t, adapter.Set(ctx, key, []byte(`[{"id":"p1","quantity":2}]`)))

	got, err := adapter.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"p1","quantity":2}]`, string(got))

	// Verify the row was upserted in place
	var rows, version int
	db.QueryRowContext(ctx, `SELECT COUNT(*), MAX(version) FROM cart_slots WHERE slot_key = ?`, key).Scan(&rows, &version)
	assert.Equal(t, 1, rows)
	assert.Equal(t, 2, version)
}

func TestMySQLMigrate_Idempotent(t *testing.T) {
	adapter, _ := getMySQLAdapter(t)
	assert.NoError(t, adapter.Migrate(context.Background()))
	assert.NoError(t, adapter.Ping(context.Background()))
}
