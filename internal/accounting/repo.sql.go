package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/accounting/reports"
	"github.com/harambee-fund/harambee/internal/platform/db"
)

const (
	uqSourceLink  = "uq_journal_entries_source"
	uqAccountCode = "accounts_code_key"
)

// Repository persists ledger entities in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds ledger operations to a transaction opened by another module.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes fn within a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const accountColumns = `id, code, name, type, subtype, normal_balance, parent_id, current_balance, is_system, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Subtype, &a.NormalBalance, &a.ParentID, &a.CurrentBalance, &a.IsSystem, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

const entryColumns = `id, entry_number, entry_date, description, reference, status, total_debit, total_credit, source_module, source_id,
reversal_of_id, reversed_by_id, reversal_reason, COALESCE(created_by, 0), posted_at, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.Number, &e.Date, &e.Description, &e.Reference, &e.Status, &e.TotalDebit, &e.TotalCredit, &e.SourceModule, &e.SourceID,
		&e.ReversalOfID, &e.ReversedByID, &e.ReversalReason, &e.CreatedBy, &e.PostedAt, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadLines(ctx context.Context, q querier, entryID int64) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `SELECT id, entry_id, line_no, account_id, debit, credit, memo
FROM journal_lines WHERE entry_id=$1 ORDER BY line_no ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.LineNo, &line.AccountID, &line.Debit, &line.Credit, &line.Memo); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *txRepository) NextEntryNumber(ctx context.Context) (string, error) {
	var seq int64
	if err := r.tx.QueryRow(ctx, `SELECT nextval('journal_entry_number_seq')`).Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("JE-%06d", seq), nil
}

func (r *txRepository) InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (entry_number, entry_date, description, reference, status, total_debit, total_credit,
source_module, source_id, reversal_of_id, reversal_reason, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id, created_at, updated_at`,
		e.Number, e.Date, e.Description, e.Reference, e.Status, e.TotalDebit, e.TotalCredit,
		e.SourceModule, e.SourceID, e.ReversalOfID, e.ReversalReason, nullInt(e.CreatedBy))
	if err := row.Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if db.IsUniqueViolation(err, uqSourceLink) {
			return JournalEntry{}, ErrSourceConflict
		}
		return JournalEntry{}, err
	}
	return e, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalLine, error) {
	out := make([]JournalLine, 0, len(lines))
	for idx, line := range lines {
		stored := JournalLine{EntryID: entryID, LineNo: idx + 1, AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit, Memo: line.Memo}
		if err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (entry_id, line_no, account_id, debit, credit, memo)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, entryID, stored.LineNo, line.AccountID, line.Debit, line.Credit, line.Memo).Scan(&stored.ID); err != nil {
			return nil, err
		}
		out = append(out, stored)
	}
	return out, nil
}

func (r *txRepository) DeleteLines(ctx context.Context, entryID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id=$1`, entryID)
	return err
}

func (r *txRepository) UpdateDraft(ctx context.Context, e JournalEntry) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET entry_date=$2, description=$3, reference=$4, total_debit=$5, total_credit=$6, updated_at=NOW()
WHERE id=$1 AND status='draft'`, e.ID, e.Date, e.Description, e.Reference, e.TotalDebit, e.TotalCredit)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, entryID int64) error {
	if err := r.DeleteLines(ctx, entryID); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1 AND status='draft'`, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	entry.Lines, err = loadLines(ctx, r.tx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) UpdateEntryState(ctx context.Context, e JournalEntry) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, total_debit=$3, total_credit=$4, posted_at=$5, reversed_by_id=$6,
reversal_reason=$7, updated_at=NOW() WHERE id=$1`, e.ID, e.Status, e.TotalDebit, e.TotalCredit, e.PostedAt, e.ReversedByID, e.ReversalReason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) GetAccountsForUpdate(ctx context.Context, ids []int64) (map[int64]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Account, len(ids))
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[acc.ID] = acc
	}
	return out, rows.Err()
}

func (r *txRepository) GetAccountByCode(ctx context.Context, code string) (Account, error) {
	acc, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return acc, nil
}

func (r *txRepository) AdjustBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET current_balance = current_balance + $2, updated_at=NOW() WHERE id=$1`, accountID, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ListAccounts returns the chart of accounts ordered by code.
func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// GetAccount loads a single account.
func (r *Repository) GetAccount(ctx context.Context, id int64) (Account, error) {
	acc, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return acc, nil
}

// InsertAccount stores a non-system account.
func (r *Repository) InsertAccount(ctx context.Context, a Account) (Account, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO accounts (code, name, type, subtype, normal_balance, parent_id, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, current_balance, created_at, updated_at`,
		a.Code, a.Name, a.Type, a.Subtype, a.NormalBalance, a.ParentID, a.IsActive).
		Scan(&a.ID, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, uqAccountCode) {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return a, nil
}

// UpdateAccount persists editable fields. System accounts are never matched.
func (r *Repository) UpdateAccount(ctx context.Context, a Account) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE accounts SET code=$2, name=$3, type=$4, subtype=$5, normal_balance=$6, parent_id=$7, is_active=$8, updated_at=NOW()
WHERE id=$1 AND NOT is_system`, a.ID, a.Code, a.Name, a.Type, a.Subtype, a.NormalBalance, a.ParentID, a.IsActive)
	if err != nil {
		if db.IsUniqueViolation(err, uqAccountCode) {
			return ErrDuplicateCode
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DeleteAccount removes a non-system account.
func (r *Repository) DeleteAccount(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id=$1 AND NOT is_system`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// AccountHasLines reports whether any journal line references the account.
func (r *Repository) AccountHasLines(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_lines WHERE account_id=$1)`, id).Scan(&exists)
	return exists, err
}

// ListEntries returns journal headers newest first.
func (r *Repository) ListEntries(ctx context.Context, filter EntryFilter) ([]JournalEntry, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status=$%d", filter.Status)
	}
	if filter.SourceModule != "" {
		add("source_module=$%d", filter.SourceModule)
	}
	if filter.From != nil {
		add("entry_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("entry_date <= $%d", *filter.To)
	}
	query := `SELECT ` + entryColumns + ` FROM journal_entries`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY entry_date DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetEntry loads an entry with its lines.
func (r *Repository) GetEntry(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	entry.Lines, err = loadLines(ctx, r.pool, id)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// BalancesAsOf sums posted and reversed lines per account up to asOf.
func (r *Repository) BalancesAsOf(ctx context.Context, asOf time.Time) ([]reports.AccountBalance, error) {
	return r.accountTotals(ctx, `e.entry_date <= $1`, asOf)
}

// ActivityBetween sums posted and reversed lines per account within the range.
func (r *Repository) ActivityBetween(ctx context.Context, from, to time.Time) ([]reports.AccountBalance, error) {
	return r.accountTotals(ctx, `e.entry_date BETWEEN $1 AND $2`, from, to)
}

func (r *Repository) accountTotals(ctx context.Context, dateClause string, args ...any) ([]reports.AccountBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.code, a.name, a.type, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM accounts a
LEFT JOIN (journal_lines l JOIN journal_entries e ON e.id = l.entry_id AND e.status IN ('posted','reversed') AND `+dateClause+`)
  ON l.account_id = a.id
GROUP BY a.id, a.code, a.name, a.type
ORDER BY a.code`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []reports.AccountBalance
	for rows.Next() {
		var b reports.AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.Type, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CashMovements sums cash account lines per source module within the range.
func (r *Repository) CashMovements(ctx context.Context, from, to time.Time) ([]reports.CashMovement, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.source_module, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
JOIN accounts a ON a.id = l.account_id
WHERE a.code = $1 AND e.status IN ('posted','reversed') AND e.entry_date BETWEEN $2 AND $3
GROUP BY e.source_module`, CodeCash, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []reports.CashMovement
	for rows.Next() {
		var mv reports.CashMovement
		if err := rows.Scan(&mv.SourceModule, &mv.Inflow, &mv.Outflow); err != nil {
			return nil, err
		}
		out = append(out, mv)
	}
	return out, rows.Err()
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
