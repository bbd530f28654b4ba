package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/rl1809/marketplace-cart/internal/port"
)

type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// BreakerStorage fails fast with gobreaker.ErrOpenState once the wrapped
// backend has failed FailureThreshold times in a row. An empty slot counts as
// success.
type BreakerStorage struct {
	next    port.CartStorage
	readCB  *gobreaker.CircuitBreaker[[]byte]
	writeCB *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerStorage(next port.CartStorage, cfg BreakerConfig, logger logrus.FieldLogger) *BreakerStorage {
	if cfg.Name == "" {
		cfg.Name = "cart-storage"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:    name,
			Timeout: cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, port.ErrSlotNotFound)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("storage breaker state changed")
			},
		}
	}

	return &BreakerStorage{
		next:    next,
		readCB:  gobreaker.NewCircuitBreaker[[]byte](settings(cfg.Name + "-read")),
		writeCB: gobreaker.NewCircuitBreaker[struct{}](settings(cfg.Name + "-write")),
	}
}

func (b *BreakerStorage) Get(ctx context.Context, key string) ([]byte, error) {
	return b.readCB.Execute(func() ([]byte, error) {
		return b.next.Get(ctx, key)
	})
}

func (b *BreakerStorage) Set(ctx context.Context, key string, data []byte) error {
	_, err := b.writeCB.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Set(ctx, key, data)
	})
	return err
}

func (b *BreakerStorage) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}

func (b *BreakerStorage) WriteState() gobreaker.State {
	return b.writeCB.State()
}
