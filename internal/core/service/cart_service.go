package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/marketplace-cart/internal/core/domain"
	"github.com/rl1809/marketplace-cart/internal/port"
)

var (
	ErrStoreNotInitialized = errors.New("cart store not initialized")
	ErrStoreClosed         = errors.New("cart store closed")
	ErrEntryNotFound       = errors.New("cart entry not found")
	ErrPersistence         = errors.New("cart persistence failed")
)

const (
	DefaultSlotKey     = "@GoMarketPlace:cart"
	DefaultLoadTimeout = 10 * time.Second
)

type Options struct {
	SlotKey   string
	QueueSize int
	// LoadTimeout bounds the shared hydration read in Initialize.
	LoadTimeout time.Duration
	Logger      logrus.FieldLogger
}

// CartService owns the in-memory cart. Mutations are serialized by mu, swap in
// a fresh Cart value and queue a snapshot for the persister without waiting on
// it; the in-memory state is updated before the write reaches storage.
type CartService struct {
	storage     port.CartStorage
	slotKey     string
	loadTimeout time.Duration
	log         logrus.FieldLogger

	mu          sync.Mutex
	products    domain.Cart
	version     uint64
	initialized bool
	closed      bool

	hydrate      singleflight.Group
	persistQueue chan domain.Snapshot
}

func NewCartService(storage port.CartStorage, opts Options) *CartService {
	if opts.SlotKey == "" {
		opts.SlotKey = DefaultSlotKey
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &CartService{
		storage:      storage,
		slotKey:      opts.SlotKey,
		loadTimeout:  opts.LoadTimeout,
		log:          opts.Logger.WithField("slot", opts.SlotKey),
		products:     domain.Cart{},
		persistQueue: make(chan domain.Snapshot, opts.QueueSize),
	}
}

// Initialize hydrates the cart from storage. An empty slot yields an empty
// cart; unreadable or corrupt data is returned as ErrPersistence and leaves the
// store uninitialized. Calling it again after success is a no-op.
//
// Concurrent callers share one read. The read runs detached from any single
// caller's cancellation, bounded by LoadTimeout; a caller whose ctx ends first
// gets ctx.Err() while the read carries on for the others.
func (s *CartService) Initialize(ctx context.Context) error {
	if s == nil {
		return ErrStoreNotInitialized
	}

	ch := s.hydrate.DoChan(s.slotKey, func() (interface{}, error) {
		s.mu.Lock()
		done := s.initialized
		s.mu.Unlock()
		if done {
			return nil, nil
		}

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()

		products, err := s.load(loadCtx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.initialized {
			s.products = products
			s.initialized = true
		}
		s.log.WithField("entries", len(products)).Info("cart hydrated")
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (s *CartService) load(ctx context.Context) (domain.Cart, error) {
	data, err := s.storage.Get(ctx, s.slotKey)
	if errors.Is(err, port.ErrSlotNotFound) {
		return domain.Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read slot: %w", ErrPersistence, err)
	}

	products, err := domain.DecodeCart(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return products, nil
}

func (s *CartService) Ready() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized && !s.closed
}

// Products returns a copy of the current cart.
func (s *CartService) Products(ctx context.Context) (domain.Cart, error) {
	if s == nil {
		return nil, ErrStoreNotInitialized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, ErrStoreNotInitialized
	}
	return s.products.Clone(), nil
}

func (s *CartService) Summary(ctx context.Context) (domain.Summary, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	return products.Summary(), nil
}

func (s *CartService) AddToCart(ctx context.Context, item domain.ProductBase) error {
	if err := item.Validate(); err != nil {
		return err
	}

	return s.mutate(func(products domain.Cart) (domain.Cart, error) {
		if i := products.IndexOf(item.ID); i >= 0 {
			products[i].Quantity++
			return products, nil
		}
		return append(products, domain.Product{ProductBase: item, Quantity: 1}), nil
	})
}

func (s *CartService) Increment(ctx context.Context, id string) error {
	return s.mutate(func(products domain.Cart) (domain.Cart, error) {
		i := products.IndexOf(id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		products[i].Quantity++
		return products, nil
	})
}

// Decrement lowers the quantity by one but never below 1; the entry is kept.
func (s *CartService) Decrement(ctx context.Context, id string) error {
	return s.mutate(func(products domain.Cart) (domain.Cart, error) {
		i := products.IndexOf(id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		if products[i].Quantity > 1 {
			products[i].Quantity--
		}
		return products, nil
	})
}

// mutate applies fn to a clone of the cart. On error nothing is swapped in and
// nothing is queued.
func (s *CartService) mutate(fn func(domain.Cart) (domain.Cart, error)) error {
	if s == nil {
		return ErrStoreNotInitialized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrStoreNotInitialized
	}
	if s.closed {
		return ErrStoreClosed
	}

	next, err := fn(s.products.Clone())
	if err != nil {
		return err
	}

	s.products = next
	s.version++
	s.enqueue(domain.Snapshot{Version: s.version, Products: next.Clone()})
	return nil
}

// enqueue never blocks. Every snapshot carries the whole cart, so when the
// queue is full the oldest one is dropped to make room for snap. Callers hold
// mu, which keeps the queue in version order.
func (s *CartService) enqueue(snap domain.Snapshot) {
	for {
		select {
		case s.persistQueue <- snap:
			return
		default:
		}

		select {
		case stale := <-s.persistQueue:
			s.log.WithField("version", stale.Version).Debug("dropped superseded snapshot")
		default:
		}
	}
}

func (s *CartService) GetPersistQueue() <-chan domain.Snapshot {
	return s.persistQueue
}

func (s *CartService) SlotKey() string {
	return s.slotKey
}

func (s *CartService) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.persistQueue)
}
