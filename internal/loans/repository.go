package loans

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

// PgRepository persists loans in PostgreSQL.
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

const loanColumns = `id, member_id, principal, interest_rate, term_months, total_amount, purpose, status, COALESCE(created_by, 0),
disbursed_at, repaid_at, disbursement_entry_id, repayment_entry_id, created_at, updated_at`

func scanLoan(row pgx.Row) (Loan, error) {
	var l Loan
	err := row.Scan(&l.ID, &l.MemberID, &l.Principal, &l.InterestRate, &l.TermMonths, &l.TotalAmount, &l.Purpose, &l.Status, &l.CreatedBy,
		&l.DisbursedAt, &l.RepaidAt, &l.DisbursementEntryID, &l.RepaymentEntryID, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Loan{}, ErrLoanNotFound
	}
	return l, err
}

func (r *PgRepository) Get(ctx context.Context, id int64) (Loan, error) {
	return scanLoan(r.pool.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id=$1`, id))
}

func (r *PgRepository) List(ctx context.Context, filter ListFilter) ([]Loan, error) {
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
	query := `SELECT ` + loanColumns + ` FROM loans`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t *pgTx) LockMember(ctx context.Context, memberID int64) (members.Member, error) {
	return t.members.LockMember(ctx, memberID)
}

func (t *pgTx) InsertLoan(ctx context.Context, l Loan) (Loan, error) {
	return scanLoan(t.tx.QueryRow(ctx, `INSERT INTO loans (member_id, principal, interest_rate, term_months, total_amount, purpose, status, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, 0))
RETURNING `+loanColumns, l.MemberID, l.Principal, l.InterestRate, l.TermMonths, l.TotalAmount, l.Purpose, l.Status, l.CreatedBy))
}

func (t *pgTx) GetLoanForUpdate(ctx context.Context, id int64) (Loan, error) {
	return scanLoan(t.tx.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id=$1 FOR UPDATE`, id))
}

func (t *pgTx) UpdateLoan(ctx context.Context, l Loan) error {
	tag, err := t.tx.Exec(ctx, `UPDATE loans
SET status=$2, disbursed_at=$3, repaid_at=$4, disbursement_entry_id=$5, repayment_entry_id=$6, updated_at=NOW()
WHERE id=$1`, l.ID, l.Status, l.DisbursedAt, l.RepaidAt, l.DisbursementEntryID, l.RepaymentEntryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLoanNotFound
	}
	return nil
}
