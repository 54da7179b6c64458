package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	config "github.com/anjiri1684/studio_booking/configs"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunLock keeps one instance of a job running at a time across processes.
type RunLock interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// NoopRunLock always grants the lock. Used when Redis is not configured, which
// is only safe with a single scheduler process.
type NoopRunLock struct{}

func (NoopRunLock) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

// releaseScript deletes the key only if it still holds our token, so a run
// that outlived its TTL cannot free a lock someone else now holds.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisRunLock struct {
	client *redis.Client
}

func NewRedisRunLock(client *redis.Client) *RedisRunLock {
	return &RedisRunLock{client: client}
}

func (l *RedisRunLock) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := "studio:jobs:lock:" + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			log.Printf("⚠️ Could not release job lock %s: %v", key, err)
		}
	}
	return release, true, nil
}

// NewRunLock connects to Redis when an address is configured and falls back to
// NoopRunLock otherwise.
func NewRunLock(ctx context.Context, cfg config.RedisConfig) (RunLock, func() error, error) {
	if cfg.Addr == "" {
		log.Println("⚠️ REDIS_ADDR not set, job runs are not coordinated across processes.")
		return NoopRunLock{}, func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	log.Println("✅ Redis connected for job locks")
	return NewRedisRunLock(client), client.Close, nil
}
