package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/saravananbs/genchargephase2/internal/logger"
	"github.com/saravananbs/genchargephase2/internal/metrics"
)

const (
	OutcomeProceed   = "proceed"
	OutcomeInFlight  = "in_flight"
	OutcomeCompleted = "completed"
)

// Decision is the guard's verdict for one (user, key) reservation
// attempt. TxnID is set when a completed reservation pinned a ledger
// transaction that should be replayed to the caller.
type Decision struct {
	Outcome string
	TxnID   *int64
}

// Guard brokers exactly-once execution per (user, key). Postgres is the
// source of truth; Redis only mirrors live reservations so duplicate
// storms are caught without touching the database row first.
type Guard interface {
	Reserve(ctx context.Context, userID int, key string) (*Decision, error)
	Complete(ctx context.Context, userID int, key string, txnID int64) error
	Release(ctx context.Context, userID int, key string) error
}

type guard struct {
	db  *sqlx.DB
	rdb *redis.Client
	ttl time.Duration
}

func NewGuard(db *sqlx.DB, rdb *redis.Client, ttl time.Duration) Guard {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &guard{db: db, rdb: rdb, ttl: ttl}
}

type keyRow struct {
	Status  string    `db:"status"`
	TxnID   *int64    `db:"txn_id"`
	StaleAt time.Time `db:"stale_at"`
}

func (g *guard) Reserve(ctx context.Context, userID int, key string) (*Decision, error) {
	g.mirrorReserve(ctx, userID, key)

	res, err := g.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (user_id, key, status, stale_at)
		VALUES ($1, $2, 'in_flight', NOW() + $3 * INTERVAL '1 second')
		ON CONFLICT (user_id, key) DO NOTHING`,
		userID, key, int(g.ttl.Seconds()))
	if err != nil {
		return nil, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if inserted == 1 {
		metrics.RecordIdempotencyDecision(OutcomeProceed)
		return &Decision{Outcome: OutcomeProceed}, nil
	}

	var row keyRow
	err = g.db.GetContext(ctx, &row,
		`SELECT status, txn_id, stale_at FROM idempotency_keys WHERE user_id = $1 AND key = $2`,
		userID, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Released between our insert and the lookup; let the
			// caller retry the whole reserve.
			metrics.RecordIdempotencyDecision(OutcomeInFlight)
			return &Decision{Outcome: OutcomeInFlight}, nil
		}
		return nil, err
	}

	if row.Status == "completed" {
		metrics.RecordIdempotencyDecision(OutcomeCompleted)
		return &Decision{Outcome: OutcomeCompleted, TxnID: row.TxnID}, nil
	}

	if time.Now().Before(row.StaleAt) {
		metrics.RecordIdempotencyDecision(OutcomeInFlight)
		return &Decision{Outcome: OutcomeInFlight}, nil
	}

	// The previous holder went silent past the staleness timeout; take
	// the reservation over.
	res, err = g.db.ExecContext(ctx, `
		UPDATE idempotency_keys
		SET stale_at = NOW() + $3 * INTERVAL '1 second', updated_at = NOW()
		WHERE user_id = $1 AND key = $2 AND status = 'in_flight' AND stale_at <= NOW()`,
		userID, key, int(g.ttl.Seconds()))
	if err != nil {
		return nil, err
	}
	taken, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if taken == 1 {
		metrics.RecordIdempotencyDecision(OutcomeProceed)
		return &Decision{Outcome: OutcomeProceed}, nil
	}

	metrics.RecordIdempotencyDecision(OutcomeInFlight)
	return &Decision{Outcome: OutcomeInFlight}, nil
}

func (g *guard) Complete(ctx context.Context, userID int, key string, txnID int64) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (user_id, key, status, txn_id, stale_at)
		VALUES ($1, $2, 'completed', $3, NOW())
		ON CONFLICT (user_id, key) DO UPDATE SET status = 'completed', txn_id = EXCLUDED.txn_id, updated_at = NOW()`,
		userID, key, txnID)
	if err != nil {
		return err
	}

	g.mirrorForget(ctx, userID, key)
	return nil
}

func (g *guard) Release(ctx context.Context, userID int, key string) error {
	_, err := g.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE user_id = $1 AND key = $2 AND status = 'in_flight'`,
		userID, key)
	if err != nil {
		return err
	}

	g.mirrorForget(ctx, userID, key)
	return nil
}

func (g *guard) mirrorReserve(ctx context.Context, userID int, key string) {
	if g.rdb == nil {
		return
	}
	if err := g.rdb.SetNX(ctx, mirrorKey(userID, key), "1", g.ttl).Err(); err != nil {
		logger.Error("idempotency mirror unavailable", "error", err)
	}
}

func (g *guard) mirrorForget(ctx context.Context, userID int, key string) {
	if g.rdb == nil {
		return
	}
	if err := g.rdb.Del(ctx, mirrorKey(userID, key)).Err(); err != nil {
		logger.Error("idempotency mirror unavailable", "error", err)
	}
}

func mirrorKey(userID int, key string) string {
	return fmt.Sprintf("idem:%d:%s", userID, key)
}
