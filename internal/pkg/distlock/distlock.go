// Package distlock guards against concurrent processing runs of the
// same message. Two overlapping passes could both dispatch to a pending
// recipient before either records the delivery, so the processor takes
// one lock per message for the duration of a pass.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a single-use advisory lock around one message run.
// A Lock instance belongs to one goroutine.
type Lock interface {
	// Acquire tries to take the lock without blocking. Returns true on
	// success; false means another run holds it and the caller should
	// skip this message.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock up if this instance still owns it.
	Release(ctx context.Context) error
}

// ForMessage creates a lock for the given message using the best
// available backend: redis when a client is configured (works across
// hosts), otherwise a postgres advisory lock scoped to the DB session.
func ForMessage(rdb *redis.Client, db *sql.DB, messageID string, ttl time.Duration) Lock {
	if rdb != nil {
		return newRedisLock(rdb, "msgrun:"+messageID, ttl)
	}
	return newAdvisoryLock(db, "msgrun:"+messageID)
}

// advisoryLock implements Lock on pg_try_advisory_lock, which is
// released automatically if the session drops — crash safety comparable
// to a redis TTL.
type advisoryLock struct {
	db  *sql.DB
	key int64
}

func newAdvisoryLock(db *sql.DB, name string) *advisoryLock {
	h := fnv.New64a()
	h.Write([]byte(name))
	return &advisoryLock{db: db, key: int64(h.Sum64())}
}

func (l *advisoryLock) Acquire(ctx context.Context) (bool, error) {
	var ok bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&ok)
	return ok, err
}

func (l *advisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	return err
}
