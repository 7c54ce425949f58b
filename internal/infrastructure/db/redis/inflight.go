package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const inflightTTL = 15 * time.Second

// InflightChecker suppresses duplicate login submissions backed by Redis.
// Key format: login_inflight:<sid>
//
// The marker carries a short TTL so a crashed gateway replica cannot lock a
// session out of login forever.
type InflightChecker struct {
	client *redis.Client
}

// NewInflightChecker creates an InflightChecker wrapping the given Redis client.
func NewInflightChecker(client *redis.Client) *InflightChecker {
	return &InflightChecker{client: client}
}

// Begin acquires the in-flight marker for sid. Returns false when a login
// for this session is already running.
func (i *InflightChecker) Begin(ctx context.Context, sid string) (bool, error) {
	ok, err := i.client.SetNX(ctx, i.key(sid), "1", inflightTTL).Result()
	if err != nil {
		return false, fmt.Errorf("in-flight acquire: %w", err)
	}
	return ok, nil
}

// End releases the in-flight marker for sid.
func (i *InflightChecker) End(ctx context.Context, sid string) error {
	return i.client.Del(ctx, i.key(sid)).Err()
}

func (i *InflightChecker) key(sid string) string {
	return fmt.Sprintf("login_inflight:%s", sid)
}
