package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SyncRunLockKey is the advisory lock key held for the duration of a sync run.
const SyncRunLockKey int64 = 7_319_204_211

const unlockTimeout = 5 * time.Second

// RunLock serialises sync runs across processes sharing one database with a
// session-level advisory lock. The lock lives on a dedicated connection, so it
// is released by Postgres if the process dies.
type RunLock struct {
	db  *sqlx.DB
	key int64
}

func NewRunLock(db *sqlx.DB) *RunLock {
	return &RunLock{db: db, key: SyncRunLockKey}
}

// TryAcquire takes the lock without waiting. When acquired is false another
// session holds it and release is nil.
func (l *RunLock) TryAcquire(ctx context.Context) (release func() error, acquired bool, err error) {
	conn, err := l.db.Connx(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("get connection: %w", err)
	}

	if err := conn.GetContext(ctx, &acquired, `SELECT pg_try_advisory_lock($1)`, l.key); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	release = func() error {
		defer conn.Close()

		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()

		if _, err := conn.ExecContext(unlockCtx, `SELECT pg_advisory_unlock($1)`, l.key); err != nil {
			return fmt.Errorf("advisory unlock: %w", err)
		}
		return nil
	}
	return release, true, nil
}
