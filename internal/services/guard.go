package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// InflightGuard allows at most one outstanding request per conversation.
// Acquire returns ErrRequestInFlight when the conversation is busy.
type InflightGuard interface {
	Acquire(ctx context.Context, conversationID uuid.UUID) (release func(), err error)
}

// MemoryGuard is an in-process InflightGuard.
type MemoryGuard struct {
	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{active: make(map[uuid.UUID]struct{})}
}

func (g *MemoryGuard) Acquire(ctx context.Context, conversationID uuid.UUID) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.active[conversationID]; busy {
		return nil, ErrRequestInFlight
	}
	g.active[conversationID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, conversationID)
			g.mu.Unlock()
		})
	}, nil
}

// ChatLockTTL is how long a conversation lock lives in Redis. Chat requests
// are cut off at the same duration so the lock never expires under them.
const ChatLockTTL = 10 * time.Minute

// RedisGuard shares the in-flight lock between server instances. The TTL
// bounds how long a crashed instance can hold a conversation.
type RedisGuard struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisGuard(redisClient *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{redis: redisClient, ttl: ttl}
}

func lockKey(conversationID uuid.UUID) string {
	return fmt.Sprintf("chat_lock:%s", conversationID.String())
}

func (g *RedisGuard) Acquire(ctx context.Context, conversationID uuid.UUID) (func(), error) {
	key := lockKey(conversationID)
	token := uuid.NewString()

	locked, err := g.redis.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire conversation lock: %w", err)
	}
	if !locked {
		return nil, ErrRequestInFlight
	}

	return func() {
		// Only delete the lock if it is still ours.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, g.redis, []string{key}, token).Err(); err != nil && err != redis.Nil {
			log.Printf("Failed to release conversation lock %s: %v", key, err)
		}
	}, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
