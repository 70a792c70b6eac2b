package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"wandernest-backend/internal/models"
)

const (
	defaultUsageLimit = 20
	maxUsageLimit     = 100
)

type UsageRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRepo(pool *pgxpool.Pool) *UsageRepo {
	return &UsageRepo{pool: pool}
}

// Create inserts u. Records are written at most once: a repeated id is ignored.
func (r *UsageRepo) Create(ctx context.Context, u *models.ChatUsage) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO chat_usage (id, user_id, request_id, provider, model, demo, reason, fallback_from, message_count, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		u.ID, u.UserID, u.RequestID, u.Provider, u.Model, u.Demo, u.Reason,
		u.FallbackFrom, u.MessageCount, u.LatencyMs, u.CreatedAt,
	)
	return err
}

// ListByUser returns the user's most recent records, newest first.
func (r *UsageRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ChatUsage, error) {
	limit = ClampLimit(limit)

	rows, err := r.pool.Query(ctx, `SELECT id, user_id, request_id, provider, model, demo, reason, fallback_from, message_count, latency_ms, created_at
		FROM chat_usage WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.ChatUsage
	for rows.Next() {
		u := &models.ChatUsage{}
		if err := rows.Scan(
			&u.ID, &u.UserID, &u.RequestID, &u.Provider, &u.Model, &u.Demo, &u.Reason,
			&u.FallbackFrom, &u.MessageCount, &u.LatencyMs, &u.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, u)
	}
	return records, rows.Err()
}

// ClampLimit maps a requested page size into [1, 100]; zero or negative gives 20.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return defaultUsageLimit
	}
	if limit > maxUsageLimit {
		return maxUsageLimit
	}
	return limit
}
