// Package redis implements the lease-based keyed mutex that serializes all
// seat-inventory mutations across service instances.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"train-ticketing/internal/errs"
)

const (
	lockPrefix   = "inventory:lock:"
	pollInterval = 50 * time.Millisecond
)

// Mutex is a distributed mutual-exclusion primitive keyed by an arbitrary
// string. Acquire blocks up to WaitTimeout; a held lease expires after
// LeaseTTL so a crashed holder cannot wedge the key forever.
type Mutex struct {
	Client      *redis.Client
	WaitTimeout time.Duration
	LeaseTTL    time.Duration
}

func NewMutex(client *redis.Client, waitTimeout, leaseTTL time.Duration) *Mutex {
	return &Mutex{
		Client:      client,
		WaitTimeout: waitTimeout,
		LeaseTTL:    leaseTTL,
	}
}

// Acquire takes the lock for key and returns the holder token needed to
// release it. It polls SetNX until the bounded wait elapses, then fails
// with ErrUnavailable: the caller treats that as "try again later", never
// as a business outcome.
func (m *Mutex) Acquire(key string) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(m.WaitTimeout)

	for {
		ok, err := m.Client.SetNX(context.Background(), lockPrefix+key, token, m.LeaseTTL).Result()
		if err != nil {
			return "", fmt.Errorf("lock %s: %v: %w", key, err, errs.ErrUnavailable)
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("lock %s: wait timeout after %s: %w", key, m.WaitTimeout, errs.ErrUnavailable)
		}
		time.Sleep(pollInterval)
	}
}

// Release frees the lock only when token still matches the stored holder,
// so a release after lease expiry cannot steal the key from the next
// holder. Releasing an already-expired lease is a no-op.
func (m *Mutex) Release(key, token string) error {
	ctx := context.Background()
	lockKey := lockPrefix + key

	val, err := m.Client.Get(ctx, lockKey).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := m.Client.Del(ctx, lockKey).Result()
		return err
	}
	return nil
}
