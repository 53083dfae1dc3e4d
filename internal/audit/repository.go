package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository stores the audit trail in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert appends an entry. A zero At is stamped by the database.
func (r *PGRepository) Insert(ctx context.Context, entry Entry) error {
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (actor, action, entity, entity_id, meta, occurred_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		entry.Actor, entry.Action, entry.Entity, entry.EntityID, metaJSON, toPgTime(entry.At))
	return err
}

// Find returns entries newest first.
func (r *PGRepository) Find(ctx context.Context, q Query) ([]Entry, error) {
	sql := `
		SELECT occurred_at, actor, action, entity, entity_id, meta
		FROM audit_logs
		WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
		  AND ($2::timestamptz IS NULL OR occurred_at < $2)
		  AND ($3::text IS NULL OR actor = $3)
		  AND ($4::text IS NULL OR entity = $4)
		  AND ($5::text IS NULL OR action = $5)
		ORDER BY occurred_at DESC, id DESC`
	args := []any{toPgTime(q.From), toPgTime(q.To), optionalText(q.Actor), optionalText(q.Entity), optionalText(q.Action)}
	if q.Limit > 0 {
		sql += ` OFFSET $6 LIMIT $7`
		args = append(args, q.Offset, q.Limit)
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: find: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var (
			e    Entry
			meta []byte
		)
		if err := row.Scan(&e.At, &e.Actor, &e.Action, &e.Entity, &e.EntityID, &meta); err != nil {
			return Entry{}, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return Entry{}, err
			}
		}
		return e, nil
	})
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
