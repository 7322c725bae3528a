// Package lock provides a single-holder lease on a redis key so that only
// one process runs the reconciler at a time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned when refreshing or releasing a lease that has
// expired or been taken by another holder.
var ErrNotHeld = errors.New("lock not held")

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker hands out leases on named keys.
type Locker struct {
	client redis.UniversalClient
	prefix string
}

// New wraps a redis client. Keys are namespaced under prefix.
func New(client redis.UniversalClient, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// Lease is a held lock. Its token guards against releasing a lock that has
// since expired and been acquired by someone else.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

// TryAcquire takes the lock if it is free. It returns (nil, nil) when
// another holder has it.
func (l *Locker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	key := l.prefix + name
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lease{locker: l, key: key, token: token}, nil
}

// Refresh extends the lease by ttl.
func (ls *Lease) Refresh(ctx context.Context, ttl time.Duration) error {
	n, err := refreshScript.Run(ctx, ls.locker.client, []string{ls.key}, ls.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("refresh %s: %w", ls.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Release gives the lock up.
func (ls *Lease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, ls.locker.client, []string{ls.key}, ls.token).Int64()
	if err != nil {
		return fmt.Errorf("release %s: %w", ls.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
