package penalties

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harambee-fund/harambee/internal/accounting"
	"github.com/harambee-fund/harambee/internal/platform/db"
	"github.com/harambee-fund/harambee/internal/shared"
)

// PgRepository persists penalties in PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

type pgTx struct {
	accounting.TxRepository
	tx pgx.Tx
}

// WithTx executes fn inside a transaction shared with the ledger.
func (r *PgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{TxRepository: accounting.NewTxRepository(tx), tx: tx})
	})
}

const penaltyColumns = `id, member_id, penalty_month, amount, reason, status, paid_at, journal_entry_id, created_at`

func scanPenalty(row pgx.Row) (Penalty, error) {
	var (
		p     Penalty
		month time.Time
	)
	err := row.Scan(&p.ID, &p.MemberID, &month, &p.Amount, &p.Reason, &p.Status, &p.PaidAt, &p.JournalEntryID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Penalty{}, ErrPenaltyNotFound
	}
	p.Month = shared.MonthOf(month)
	return p, err
}

func (r *PgRepository) Get(ctx context.Context, id int64) (Penalty, error) {
	return scanPenalty(r.pool.QueryRow(ctx, `SELECT `+penaltyColumns+` FROM penalties WHERE id=$1`, id))
}

func (r *PgRepository) List(ctx context.Context, filter ListFilter) ([]Penalty, error) {
	var (
		where []string
		args  []any
	)
	if filter.MemberID > 0 {
		args = append(args, filter.MemberID)
		where = append(where, fmt.Sprintf("member_id=$%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	query := `SELECT ` + penaltyColumns + ` FROM penalties`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY penalty_month DESC, member_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Penalty
	for rows.Next() {
		p, err := scanPenalty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) PenalisedMonths(ctx context.Context, from, to shared.Month) (map[int64]map[shared.Month]bool, error) {
	rows, err := t.tx.Query(ctx, `SELECT member_id, penalty_month FROM penalties WHERE penalty_month >= $1 AND penalty_month < $2`,
		from.Start(), to.Start())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]map[shared.Month]bool)
	for rows.Next() {
		var (
			memberID int64
			month    time.Time
		)
		if err := rows.Scan(&memberID, &month); err != nil {
			return nil, err
		}
		if out[memberID] == nil {
			out[memberID] = make(map[shared.Month]bool)
		}
		out[memberID][shared.MonthOf(month)] = true
	}
	return out, rows.Err()
}

func (t *pgTx) InsertPenalty(ctx context.Context, p Penalty) (Penalty, bool, error) {
	created, err := scanPenalty(t.tx.QueryRow(ctx, `INSERT INTO penalties (member_id, penalty_month, amount, reason, status)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT ON CONSTRAINT uq_penalties_member_month DO NOTHING
RETURNING `+penaltyColumns, p.MemberID, p.Month.Start(), p.Amount, p.Reason, p.Status))
	if errors.Is(err, ErrPenaltyNotFound) {
		return Penalty{}, false, nil
	}
	if err != nil {
		return Penalty{}, false, err
	}
	return created, true, nil
}

func (t *pgTx) GetPenaltyForUpdate(ctx context.Context, id int64) (Penalty, error) {
	return scanPenalty(t.tx.QueryRow(ctx, `SELECT `+penaltyColumns+` FROM penalties WHERE id=$1 FOR UPDATE`, id))
}

func (t *pgTx) UpdatePenalty(ctx context.Context, p Penalty) error {
	tag, err := t.tx.Exec(ctx, `UPDATE penalties SET status=$2, paid_at=$3, journal_entry_id=$4 WHERE id=$1`,
		p.ID, p.Status, p.PaidAt, p.JournalEntryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPenaltyNotFound
	}
	return nil
}
