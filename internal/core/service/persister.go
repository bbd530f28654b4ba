package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/marketplace-cart/internal/core/domain"
	"github.com/rl1809/marketplace-cart/internal/port"
)

type PersisterConfig struct {
	MaxRetries    uint64
	RetryInterval time.Duration
	Timeout       time.Duration
}

// Persister is the single writer of the cart slot. It drains snapshots queued
// by CartService and writes the newest one it has seen.
type Persister struct {
	storage port.CartStorage
	slotKey string
	cfg     PersisterConfig
	log     logrus.FieldLogger

	lastWritten uint64
}

func NewPersister(storage port.CartStorage, slotKey string, cfg PersisterConfig, logger logrus.FieldLogger) *Persister {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Persister{
		storage: storage,
		slotKey: slotKey,
		cfg:     cfg,
		log:     logger.WithField("slot", slotKey),
	}
}

// Run blocks until queue is closed and drained.
func (p *Persister) Run(queue <-chan domain.Snapshot) {
	for snap := range queue {
		snap = latest(snap, queue)
		p.write(snap)
	}
}

// latest skips over snapshots that are already superseded by a queued one.
func latest(snap domain.Snapshot, queue <-chan domain.Snapshot) domain.Snapshot {
	for {
		select {
		case next, ok := <-queue:
			if !ok {
				return snap
			}
			snap = next
		default:
			return snap
		}
	}
}

func (p *Persister) write(snap domain.Snapshot) {
	logger := p.log.WithField("version", snap.Version)

	if snap.Version <= p.lastWritten {
		logger.Debug("skipping stale snapshot")
		return
	}

	data, err := domain.EncodeCart(snap.Products)
	if err != nil {
		logger.WithError(err).Error("failed to encode cart")
		return
	}

	attempt := 0
	op := func() error {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
		defer cancel()
		return p.storage.Set(ctx, p.slotKey, data)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.cfg.RetryInterval
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		logger.WithError(err).WithField("attempt", attempt).Warnf("cart write failed, retrying in %v", wait)
	}

	if err := backoff.RetryNotify(op, backoff.WithMaxRetries(policy, p.cfg.MaxRetries), notify); err != nil {
		// In-memory state stays authoritative; the next mutation rewrites the slot.
		logger.WithError(err).WithField("attempts", attempt).Error("failed to persist cart")
		return
	}

	p.lastWritten = snap.Version
	logger.WithField("entries", len(snap.Products)).Debug("cart persisted")
}

func (p *Persister) LastWritten() uint64 {
	return p.lastWritten
}
