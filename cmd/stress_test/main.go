package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/marketplace-cart/internal/adapter/storage"
	"github.com/rl1809/marketplace-cart/internal/core/domain"
	"github.com/rl1809/marketplace-cart/internal/core/service"
)

const (
	slotKey       = "stress-test:cart"
	productCount  = 5
	totalRequests = 1000
	queueSize     = 64
)

func main() {
	ctx := context.Background()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Initialize adapter and clear previous test data
	adapter := storage.NewRedisAdapter(rdb)
	if err := adapter.Delete(ctx, slotKey); err != nil {
		logger.Fatalf("failed to clear slot: %v", err)
	}

	// Initialize service
	cartService := service.NewCartService(adapter, service.Options{
		SlotKey:   slotKey,
		QueueSize: queueSize,
		Logger:    logger,
	})
	if err := cartService.Initialize(ctx); err != nil {
		logger.Fatalf("failed to initialize cart: %v", err)
	}

	persister := service.NewPersister(adapter, slotKey, service.PersisterConfig{MaxRetries: 3}, logger)
	var persistWg sync.WaitGroup
	persistWg.Add(1)
	go func() {
		defer persistWg.Done()
		persister.Run(cartService.GetPersistQueue())
	}()

	for i := 0; i < productCount; i++ {
		item := domain.ProductBase{ID: fmt.Sprintf("p%d", i), Title: fmt.Sprintf("Product %d", i), Price: 9.99}
		if err := cartService.AddToCart(ctx, item); err != nil {
			logger.Fatalf("failed to seed cart: %v", err)
		}
	}

	// Counters
	var incCount atomic.Int32
	var decCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent requests: two increments for every decrement
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			id := fmt.Sprintf("p%d", n%productCount)
			var err error
			if n%3 == 2 {
				err = cartService.Decrement(ctx, id)
				if err == nil {
					decCount.Add(1)
				}
			} else {
				err = cartService.Increment(ctx, id)
				if err == nil {
					incCount.Add(1)
				}
			}
			if err != nil {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	cartService.Close()
	persistWg.Wait()

	products, _ := cartService.Products(ctx)
	total := 0
	for _, p := range products {
		total += p.Quantity
	}

	// Results
	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Products:          %d\n", productCount)
	fmt.Printf("Total Requests:    %d\n", totalRequests)
	fmt.Printf("Increments:        %d\n", incCount.Load())
	fmt.Printf("Decrements:        %d\n", decCount.Load())
	fmt.Printf("Failed:            %d\n", failCount.Load())
	fmt.Printf("Total Quantity:    %d\n", total)
	fmt.Printf("Last Persisted:    v%d\n", persister.LastWritten())
	fmt.Printf("Duration:          %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if failCount.Load() == 0 {
		fmt.Println("PASS: every request succeeded")
	} else {
		fmt.Printf("FAIL: %d requests failed\n", failCount.Load())
	}

	// Decrements may hit the floor, so the total is bounded rather than exact.
	upper := productCount + int(incCount.Load())
	lower := upper - int(decCount.Load())
	if total >= lower && total <= upper {
		fmt.Printf("PASS: total quantity %d within [%d, %d]\n", total, lower, upper)
	} else {
		fmt.Printf("FAIL: total quantity %d outside [%d, %d]\n", total, lower, upper)
	}

	// Verify the persisted slot matches memory
	raw, err := adapter.Get(ctx, slotKey)
	if err != nil {
		fmt.Printf("FAIL: read slot: %v\n", err)
		return
	}
	persisted, err := domain.DecodeCart(raw)
	if err != nil {
		fmt.Printf("FAIL: decode slot: %v\n", err)
		return
	}

	match := len(persisted) == len(products)
	for i := 0; match && i < len(products); i++ {
		match = persisted[i] == products[i]
	}
	if match {
		fmt.Println("PASS: persisted cart matches memory")
	} else {
		fmt.Println("FAIL: persisted cart differs from memory")
	}
}
