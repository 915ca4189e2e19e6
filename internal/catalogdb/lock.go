package catalogdb

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// Lock takes the catalog's advisory writer lock, waiting until ctx is done.
// The returned function releases it.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	return AcquireLock(ctx, s.path+".lock")
}

// AcquireLock takes an exclusive advisory lock on lockPath.
func AcquireLock(ctx context.Context, lockPath string) (func(), error) {
	lock := flock.New(lockPath)
	ok, err := lock.TryLockContext(ensureContext(ctx), lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire catalog lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire catalog lock: %s is held by another process", lockPath)
	}
	return func() { _ = lock.Unlock() }, nil
}
