package record

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"storefront/internal/logging"
)

type postgresStore struct {
	pool      *pgxpool.Pool
	namespace string
	logger    *zap.Logger
}

// NewPostgres returns a Store keeping records in the client_records table, scoped by namespace
// (one namespace per device or CLI profile).
func NewPostgres(pool *pgxpool.Pool, namespace string, logger *zap.Logger) Store {
	return &postgresStore{pool: pool, namespace: namespace, logger: logging.OrNop(logger).Named("record")}
}

func (r *postgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	const q = `
SELECT value
FROM client_records
WHERE namespace = $1 AND key = $2 AND (expires_at IS NULL OR expires_at > now())
`
	var value string
	err := r.pool.QueryRow(ctx, q, r.namespace, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("record repo: get miss", zap.String("namespace", r.namespace), zap.String("key", key))
			return "", false, nil
		}
		r.logger.Warn("record repo: get", zap.String("namespace", r.namespace), zap.String("key", key), zap.Error(err))
		return "", false, err
	}
	return value, true, nil
}

func (r *postgresStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	const q = `
INSERT INTO client_records (namespace, key, value, expires_at, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (namespace, key) DO UPDATE
SET value = EXCLUDED.value,
    expires_at = EXCLUDED.expires_at,
    updated_at = now()
`
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl).UTC()
		expiresAt = &t
	}
	if _, err := r.pool.Exec(ctx, q, r.namespace, key, value, expiresAt); err != nil {
		r.logger.Warn("record repo: set", zap.String("namespace", r.namespace), zap.String("key", key), zap.Error(err))
		return err
	}
	r.logger.Debug("record repo: set", zap.String("namespace", r.namespace), zap.String("key", key), zap.Int("bytes", len(value)))
	return nil
}

func (r *postgresStore) Delete(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM client_records WHERE namespace = $1 AND key = $2`, r.namespace, key)
	return err
}
