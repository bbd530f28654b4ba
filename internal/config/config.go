package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/subosito/gotenv"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMySQL  = "mysql"
	BackendMongo  = "mongo"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	Storage string
	SlotKey string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MySQLDSN      string
	MongoURI      string
	MongoDB       string

	PersistQueueSize     int
	PersistMaxRetries    uint64
	PersistRetryInterval time.Duration
	PersistTimeout       time.Duration
	InitTimeout          time.Duration

	BreakerThreshold uint32
	BreakerTimeout   time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file, then the environment. Variables already set
// in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := gotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: load %s: %v", ErrInvalidConfig, f, err)
		}
	}

	cfg := &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:      getEnv("GRPC_ADDR", ":50051"),
		Storage:       getEnv("CART_STORAGE", BackendRedis),
		SlotKey:       getEnv("CART_SLOT_KEY", "@GoMarketPlace:cart"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MySQLDSN:      getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/marketplace?parseTime=true"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "marketplace"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}

	var errs []error
	cfg.RedisDB = getInt("REDIS_DB", 0, &errs)
	cfg.PersistQueueSize = getInt("PERSIST_QUEUE_SIZE", 128, &errs)
	cfg.PersistMaxRetries = uint64(getInt("PERSIST_MAX_RETRIES", 3, &errs))
	cfg.PersistRetryInterval = getDuration("PERSIST_RETRY_INTERVAL", 100*time.Millisecond, &errs)
	cfg.PersistTimeout = getDuration("PERSIST_TIMEOUT", 5*time.Second, &errs)
	cfg.InitTimeout = getDuration("INIT_TIMEOUT", 10*time.Second, &errs)
	cfg.BreakerThreshold = uint32(getInt("BREAKER_THRESHOLD", 5, &errs))
	cfg.BreakerTimeout = getDuration("BREAKER_TIMEOUT", 30*time.Second, &errs)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage {
	case BackendMemory, BackendRedis, BackendMySQL, BackendMongo:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage)
	}
	if c.SlotKey == "" {
		return fmt.Errorf("%w: empty slot key", ErrInvalidConfig)
	}
	if c.PersistQueueSize <= 0 {
		return fmt.Errorf("%w: persist queue size must be positive", ErrInvalidConfig)
	}
	if c.PersistTimeout <= 0 || c.InitTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		*errs = append(*errs, fmt.Errorf("%w: %s=%q is not a non-negative integer", ErrInvalidConfig, key, raw))
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, raw, err))
		return defaultValue
	}
	return v
}
