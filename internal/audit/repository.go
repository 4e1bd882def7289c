package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository reads audit_logs from PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a pgx-backed audit repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const windowSQL = `SELECT id, occurred_at, actor_id, action, entity, entity_id, meta
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::bigint IS NULL OR actor_id = $3)
  AND ($4::text IS NULL OR entity = $4)
  AND ($5::text IS NULL OR action = $5)
ORDER BY occurred_at DESC, id DESC
OFFSET $6 LIMIT $7`

// Window implements Repository. To is inclusive of the whole calendar day.
func (r *PgRepository) Window(ctx context.Context, q Query) ([]Entry, error) {
	to := q.To
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}
	rows, err := r.pool.Query(ctx, windowSQL,
		toPgTime(q.From), toPgTime(to), optionalInt(q.ActorID),
		optionalText(q.Entity), optionalText(q.Action), q.Offset, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("audit window: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e     Entry
			actor pgtype.Int8
			meta  []byte
		)
		if err := rows.Scan(&e.ID, &e.At, &actor, &e.Action, &e.Entity, &e.EntityID, &meta); err != nil {
			return nil, err
		}
		if actor.Valid {
			e.ActorID = actor.Int64
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return nil, fmt.Errorf("audit meta %d: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}

func optionalInt(value int64) pgtype.Int8 {
	if value <= 0 {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: value, Valid: true}
}
