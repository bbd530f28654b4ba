package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/marketplace-cart/internal/port"
)

const createSlotsTable = `
	CREATE TABLE IF NOT EXISTS cart_slots (
		slot_key   VARCHAR(191) NOT NULL PRIMARY KEY,
		payload    MEDIUMBLOB   NOT NULL,
		version    BIGINT       NOT NULL DEFAULT 0,
		created_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createSlotsTable); err != nil {
		return fmt.Errorf("create cart_slots: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := m.db.QueryRowContext(ctx, `
		SELECT payload FROM cart_slots WHERE slot_key = ?`, key,
	).Scan(&payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query slot: %w", err)
	}

	return payload, nil
}

func (m *MySQLAdapter) Set(ctx context.Context, key string, data []byte) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO cart_slots (slot_key, payload, version)
		VALUES (?, ?, 1)
		ON DUPLICATE KEY UPDATE payload = VALUES(payload), version = version + 1`,
		key, data,
	)
	if err != nil {
		return fmt.Errorf("upsert slot: %w", err)
	}

	return nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}
