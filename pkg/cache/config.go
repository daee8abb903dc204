package cache

import "time"

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Prefix   string
}

// RedisOption overrides a RedisConfig field.
type RedisOption func(*RedisConfig)

func WithRedisHost(host string) RedisOption {
	return func(c *RedisConfig) { c.Host = host }
}

func WithRedisPort(port int) RedisOption {
	return func(c *RedisConfig) { c.Port = port }
}

func WithRedisPassword(password string) RedisOption {
	return func(c *RedisConfig) { c.Password = password }
}

func WithRedisDB(db int) RedisOption {
	return func(c *RedisConfig) { c.DB = db }
}

func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) { c.Prefix = prefix }
}

// MemoryConfig bounds the in-process backend.
type MemoryConfig struct {
	MaxEntries int
	SweepEvery time.Duration
	DefaultTTL time.Duration
}

// MemoryOption overrides a MemoryConfig field.
type MemoryOption func(*MemoryConfig)

func WithMemoryMaxSize(n int) MemoryOption {
	return func(c *MemoryConfig) { c.MaxEntries = n }
}

func WithMemorySweep(every time.Duration) MemoryOption {
	return func(c *MemoryConfig) { c.SweepEvery = every }
}

// LayeredConfig sizes the L1 memory layer in front of Redis.
type LayeredConfig struct {
	MemoryMaxSize int
}

// LayeredOption overrides a LayeredConfig field.
type LayeredOption func(*LayeredConfig)

func WithLayeredMemorySize(n int) LayeredOption {
	return func(c *LayeredConfig) { c.MemoryMaxSize = n }
}
