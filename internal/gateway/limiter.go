package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultWindow = 15 * time.Minute

	keyPrefix = "ratelimit"
)

// Request budget of a client per fixed window
type Quota struct {
	Name    string
	Limit   int64
	Window  time.Duration
	Message string
}

var (
	GeneralQuota = Quota{
		Name:    "general",
		Limit:   100,
		Window:  DefaultWindow,
		Message: "Too many requests from this IP, please try again later.",
	}

	AuthQuota = Quota{
		Name:    "auth",
		Limit:   20,
		Window:  DefaultWindow,
		Message: "Too many authentication attempts from this IP, please try again later.",
	}
)

// Outcome of counting a request against a quota
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64

	// Time left until the window restarts
	Reset time.Duration
}

// Fixed window counters kept in redis, so every gateway instance shares them
type Limiter struct {
	rdb redis.Cmdable
}

func NewLimiter(rdb redis.Cmdable) *Limiter {
	return &Limiter{rdb: rdb}
}

// Count request of the client against the quota
func (l *Limiter) Allow(ctx context.Context, q Quota, client string) (Decision, error) {
	key := fmt.Sprintf("%s:%s:%s", keyPrefix, q.Name, client)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("can't count request. Err: %w", err)
	}

	// First request opens the window
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, q.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("can't start window. Err: %w", err)
		}
	}

	ttl, err := l.rdb.TTL(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("can't get window ttl. Err: %w", err)
	}

	// Counter without expiry would block the client forever
	if ttl < 0 {
		ttl = q.Window
		if err := l.rdb.Expire(ctx, key, q.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("can't start window. Err: %w", err)
		}
	}

	return Decision{
		Allowed:   count <= q.Limit,
		Limit:     q.Limit,
		Remaining: max(q.Limit-count, 0),
		Reset:     ttl,
	}, nil
}
