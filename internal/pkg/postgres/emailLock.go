package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EmailLock guards against sending the same notification twice.
// A row per (session, msg type) holds the state:
// 0 - failed, may retry, 1 - locked for sending, 2 - sent
type EmailLock struct {
	pool *pgxpool.Pool
}

func NewEmailLock(pool *pgxpool.Pool) (*EmailLock, error) {
	if pool == nil {
		return nil, fmt.Errorf("no pool")
	}
	return &EmailLock{pool: pool}, nil
}

// Lock marks the notification as being sent, fails if it was already sent or is in progress
func (el *EmailLock) Lock(ctx context.Context, id, msgType string) error {
	cmd, err := el.pool.Exec(ctx, `
		INSERT INTO email_lock(id, msg_type, status) VALUES ($1, $2, 1)
		ON CONFLICT (id, msg_type) DO UPDATE SET status = 1 WHERE email_lock.status = 0`,
		id, msgType)
	if err != nil {
		return fmt.Errorf("can't lock email row: %w", err)
	}
	if cmd.RowsAffected() != 1 {
		return fmt.Errorf("email already sent or locked for %s/%s", id, msgType)
	}
	return nil
}

// Unlock saves the final state of the notification
func (el *EmailLock) Unlock(ctx context.Context, id, msgType string, value *int) error {
	_, err := el.pool.Exec(ctx, `UPDATE email_lock SET status = $3 WHERE id = $1 AND msg_type = $2`,
		id, msgType, *value)
	if err != nil {
		return fmt.Errorf("can't unlock email row: %w", err)
	}
	return nil
}
