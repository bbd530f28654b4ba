package port

import (
	"context"
	"errors"
)

var ErrSlotNotFound = errors.New("slot not found")

type CartStorage interface {
	// Get returns the blob stored under key, or ErrSlotNotFound if nothing was written yet
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites the blob stored under key
	Set(ctx context.Context, key string, data []byte) error

	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error
}
