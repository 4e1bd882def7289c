package debts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harambee-fund/harambee/internal/accounting"
	"github.com/harambee-fund/harambee/internal/members"
	"github.com/harambee-fund/harambee/internal/platform/db"
)

// PgRepository persists debts in PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

type pgTx struct {
	accounting.TxRepository
	members members.TxRepository
	tx      pgx.Tx
}

// WithTx executes fn inside a transaction shared with the ledger.
func (r *PgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{
			TxRepository: accounting.NewTxRepository(tx),
			members:      members.NewTxRepository(tx),
			tx:           tx,
		})
	})
}

const debtColumns = `id, member_id, amount, reason, due_date, status, paid_at, journal_entry_id, COALESCE(created_by, 0), created_at`

func scanDebt(row pgx.Row) (Debt, error) {
	var d Debt
	err := row.Scan(&d.ID, &d.MemberID, &d.Amount, &d.Reason, &d.DueDate, &d.Status, &d.PaidAt, &d.JournalEntryID, &d.CreatedBy, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Debt{}, ErrDebtNotFound
	}
	return d, err
}

func (r *PgRepository) Get(ctx context.Context, id int64) (Debt, error) {
	return scanDebt(r.pool.QueryRow(ctx, `SELECT `+debtColumns+` FROM debts WHERE id=$1`, id))
}

func (r *PgRepository) List(ctx context.Context, filter ListFilter) ([]Debt, error) {
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
	query := `SELECT ` + debtColumns + ` FROM debts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY due_date, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (t *pgTx) LockMember(ctx context.Context, memberID int64) (members.Member, error) {
	return t.members.LockMember(ctx, memberID)
}

func (t *pgTx) InsertDebt(ctx context.Context, d Debt) (Debt, error) {
	return scanDebt(t.tx.QueryRow(ctx, `INSERT INTO debts (member_id, amount, reason, due_date, status, created_by)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, 0))
RETURNING `+debtColumns, d.MemberID, d.Amount, d.Reason, d.DueDate, d.Status, d.CreatedBy))
}

func (t *pgTx) GetDebtForUpdate(ctx context.Context, id int64) (Debt, error) {
	return scanDebt(t.tx.QueryRow(ctx, `SELECT `+debtColumns+` FROM debts WHERE id=$1 FOR UPDATE`, id))
}

func (t *pgTx) UpdateDebt(ctx context.Context, d Debt) error {
	tag, err := t.tx.Exec(ctx, `UPDATE debts SET status=$2, paid_at=$3, journal_entry_id=$4 WHERE id=$1`, d.ID, d.Status, d.PaidAt, d.JournalEntryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDebtNotFound
	}
	return nil
}
