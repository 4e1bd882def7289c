package disasters

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harambee-fund/harambee/internal/accounting"
	"github.com/harambee-fund/harambee/internal/members"
	"github.com/harambee-fund/harambee/internal/platform/db"
)

// PgRepository persists relief payments in PostgreSQL.
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

const paymentColumns = `id, member_id, amount, payment_date, purpose, COALESCE(admin_id, 0), journal_entry_id, created_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.MemberID, &p.Amount, &p.PaymentDate, &p.Purpose, &p.AdminID, &p.JournalEntryID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrPaymentNotFound
	}
	return p, err
}

func (r *PgRepository) Get(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM disaster_payments WHERE id=$1`, id))
}

func (r *PgRepository) List(ctx context.Context, memberID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM disaster_payments
WHERE ($1::bigint = 0 OR member_id = $1) ORDER BY payment_date DESC, id DESC`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) LockMember(ctx context.Context, memberID int64) (members.Member, error) {
	return t.members.LockMember(ctx, memberID)
}

func (t *pgTx) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	return scanPayment(t.tx.QueryRow(ctx, `INSERT INTO disaster_payments (member_id, amount, payment_date, purpose, admin_id)
VALUES ($1, $2, $3, $4, NULLIF($5, 0))
RETURNING `+paymentColumns, p.MemberID, p.Amount, p.PaymentDate, p.Purpose, p.AdminID))
}

func (t *pgTx) LinkJournal(ctx context.Context, paymentID, entryID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE disaster_payments SET journal_entry_id=$2 WHERE id=$1`, paymentID, entryID)
	return err
}
