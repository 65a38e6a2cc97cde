package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MuiGoku123432/adoflow/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// ErrLockAcquire is returned when the lock cannot be acquired.
var ErrLockAcquire = errors.New("failed to acquire distributed lock")

// unlockScript releases the lock only when the stored token still matches,
// so a lock that expired and was re-acquired elsewhere is never deleted.
const unlockScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// Locker implements ports.DistributedLocker using Redis SET NX PX.
type Locker struct {
	client *backend.Client
	prefix string
}

// NewLocker creates a new Redis locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
	}
}

// Lock acquires a distributed lock for the given key. It tries immediately,
// then polls until the context is canceled.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	try := func() (ports.UnlockFunc, bool, error) {
		success, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, false, fmt.Errorf("redis error acquiring lock: %w", err)
		}
		if !success {
			return nil, false, nil
		}
		return func(ctx context.Context) error {
			return l.client.Eval(ctx, unlockScript, []string{lockKey}, token).Err()
		}, true, nil
	}

	if unlock, ok, err := try(); err != nil || ok {
		return unlock, err
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			unlock, ok, err := try()
			if err != nil {
				return nil, err
			}
			if ok {
				return unlock, nil
			}
		}
	}
}
