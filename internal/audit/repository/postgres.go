package repository

import (
	"context"
	"database/sql"

	"loginus/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, action, resource, result, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`, entry.ID, entry.ActorID, entry.Action, entry.Resource, entry.Result, entry.Metadata, entry.CreatedAt)
	return err
}

func (r *PostgresRepository) ListByActor(ctx context.Context, actorID string, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, actor_id, action, resource, result, COALESCE(metadata, ''), created_at
		FROM audit_logs
		WHERE actor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, actorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		var e domain.AuditLog
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Resource, &e.Result, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
