package contributions

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/accounting"
	"github.com/harambee-fund/harambee/internal/members"
	"github.com/harambee-fund/harambee/internal/platform/db"
	"github.com/harambee-fund/harambee/internal/shared"
)

// PgRepository persists payments and allocations in PostgreSQL.
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

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func collectTotals(rows pgx.Rows) (map[shared.Month]decimal.Decimal, error) {
	defer rows.Close()
	out := make(map[shared.Month]decimal.Decimal)
	for rows.Next() {
		var (
			month time.Time
			total decimal.Decimal
		)
		if err := rows.Scan(&month, &total); err != nil {
			return nil, err
		}
		out[shared.MonthOf(month)] = total
	}
	return out, rows.Err()
}

func (r *PgRepository) MonthlyTotals(ctx context.Context, year int) (map[int64]map[shared.Month]decimal.Decimal, error) {
	from := shared.NewMonth(year, time.January)
	rows, err := r.pool.Query(ctx, `SELECT member_id, month, SUM(amount)
FROM contribution_allocations
WHERE month >= $1 AND month < $2
GROUP BY member_id, month`, from.Start(), from.AddMonths(12).Start())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]map[shared.Month]decimal.Decimal)
	for rows.Next() {
		var (
			memberID int64
			month    time.Time
			total    decimal.Decimal
		)
		if err := rows.Scan(&memberID, &month, &total); err != nil {
			return nil, err
		}
		if out[memberID] == nil {
			out[memberID] = make(map[shared.Month]decimal.Decimal)
		}
		out[memberID][shared.MonthOf(month)] = total
	}
	return out, rows.Err()
}

func (r *PgRepository) MemberMonthlyTotals(ctx context.Context, memberID int64, year int) (map[shared.Month]decimal.Decimal, error) {
	from := shared.NewMonth(year, time.January)
	rows, err := r.pool.Query(ctx, `SELECT month, SUM(amount)
FROM contribution_allocations
WHERE member_id=$1 AND month >= $2 AND month < $3
GROUP BY month`, memberID, from.Start(), from.AddMonths(12).Start())
	if err != nil {
		return nil, err
	}
	return collectTotals(rows)
}

const paymentColumns = `id, member_id, amount, payment_date, type, purpose, notes, COALESCE(recorded_by, 0), journal_entry_id, created_at`

func (r *PgRepository) ListPayments(ctx context.Context, memberID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM contribution_payments WHERE member_id=$1 ORDER BY payment_date DESC, id DESC`, memberID)
	if err != nil {
		return nil, err
	}
	var (
		payments []Payment
		index    = make(map[int64]int)
	)
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.MemberID, &p.Amount, &p.PaymentDate, &p.Type, &p.Purpose, &p.Notes, &p.RecordedBy, &p.JournalEntryID, &p.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		index[p.ID] = len(payments)
		payments = append(payments, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	allocations, err := listAllocations(ctx, r.pool, memberID)
	if err != nil {
		return nil, err
	}
	for _, a := range allocations {
		if i, ok := index[a.PaymentID]; ok {
			payments[i].Allocations = append(payments[i].Allocations, a)
		}
	}
	return payments, nil
}

func listAllocations(ctx context.Context, q querier, memberID int64) ([]Allocation, error) {
	rows, err := q.Query(ctx, `SELECT id, payment_id, member_id, month, amount, kind, purpose, notes
FROM contribution_allocations WHERE member_id=$1 ORDER BY payment_id, month`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Allocation
	for rows.Next() {
		var (
			a     Allocation
			month time.Time
		)
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.MemberID, &month, &a.Amount, &a.Kind, &a.Purpose, &a.Notes); err != nil {
			return nil, err
		}
		a.Month = shared.MonthOf(month)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *pgTx) LockMember(ctx context.Context, memberID int64) (members.Member, error) {
	return t.members.LockMember(ctx, memberID)
}

func (t *pgTx) MonthTotalsFrom(ctx context.Context, memberID int64, from shared.Month) (map[shared.Month]decimal.Decimal, error) {
	rows, err := t.tx.Query(ctx, `SELECT month, SUM(amount)
FROM contribution_allocations
WHERE member_id=$1 AND month >= $2
GROUP BY month`, memberID, from.Start())
	if err != nil {
		return nil, err
	}
	return collectTotals(rows)
}

func (t *pgTx) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO contribution_payments (member_id, amount, payment_date, type, purpose, notes, recorded_by)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, 0))
RETURNING id, created_at`, p.MemberID, p.Amount, p.PaymentDate, p.Type, p.Purpose, p.Notes, p.RecordedBy)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (t *pgTx) InsertAllocations(ctx context.Context, allocations []Allocation) ([]Allocation, error) {
	batch := &pgx.Batch{}
	for _, a := range allocations {
		batch.Queue(`INSERT INTO contribution_allocations (payment_id, member_id, month, amount, kind, purpose, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`, a.PaymentID, a.MemberID, a.Month.Start(), a.Amount, a.Kind, a.Purpose, a.Notes)
	}
	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()
	out := make([]Allocation, len(allocations))
	for i, a := range allocations {
		if err := br.QueryRow().Scan(&a.ID); err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func (t *pgTx) LinkJournal(ctx context.Context, paymentID, entryID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE contribution_payments SET journal_entry_id=$2 WHERE id=$1`, paymentID, entryID)
	return err
}
