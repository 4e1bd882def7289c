package members

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harambee-fund/harambee/internal/platform/db"
)

const uqMemberEmail = "uq_members_email_active"

// PgRepository persists members in PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

type pgTx struct {
	tx pgx.Tx
}

// NewTxRepository binds member operations to a transaction opened by another module.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &pgTx{tx: tx}
}

// WithTx executes fn inside a transaction.
func (r *PgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

const memberColumns = `id, first_name, middle_name, last_name, email, phone, is_verified, deleted_at, created_at, updated_at`

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.FirstName, &m.MiddleName, &m.LastName, &m.Email, &m.Phone, &m.IsVerified, &m.DeletedAt, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, ErrMemberNotFound
	}
	return m, err
}

const dependentColumns = `id, member_id, name, relationship, status, certificate_status, created_at, updated_at`

func scanDependent(row pgx.Row) (Dependent, error) {
	var d Dependent
	err := row.Scan(&d.ID, &d.MemberID, &d.Name, &d.Relationship, &d.Status, &d.CertificateStatus, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Dependent{}, ErrDependentNotFound
	}
	return d, err
}

func collectMembers(rows pgx.Rows) ([]Member, error) {
	defer rows.Close()
	var out []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PgRepository) List(ctx context.Context, filter ListFilter) ([]Member, int, error) {
	where := []string{"deleted_at IS NULL"}
	var args []any
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		where = append(where, fmt.Sprintf("(LOWER(first_name || ' ' || last_name) LIKE $%[1]d OR LOWER(email) LIKE $%[1]d OR phone LIKE $%[1]d)", len(args)))
	}
	if filter.Verified != nil {
		args = append(args, *filter.Verified)
		where = append(where, fmt.Sprintf("is_verified = $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM members WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.PerPage, (filter.Page-1)*filter.PerPage)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM members WHERE %s ORDER BY last_name, first_name, id LIMIT $%d OFFSET $%d`,
		memberColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectMembers(rows)
	return items, total, err
}

func (r *PgRepository) ListActive(ctx context.Context) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+memberColumns+` FROM members WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectMembers(rows)
}

func (r *PgRepository) Get(ctx context.Context, id int64) (Member, error) {
	return scanMember(r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id=$1 AND deleted_at IS NULL`, id))
}

func (r *PgRepository) ListDependents(ctx context.Context, memberID int64) ([]Dependent, error) {
	return listDependents(ctx, r.pool, memberID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listDependents(ctx context.Context, q querier, memberID int64) ([]Dependent, error) {
	rows, err := q.Query(ctx, `SELECT `+dependentColumns+` FROM dependents WHERE member_id=$1 ORDER BY id`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Dependent
	for rows.Next() {
		d, err := scanDependent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (t *pgTx) LockMember(ctx context.Context, id int64) (Member, error) {
	return scanMember(t.tx.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, id))
}

func (t *pgTx) InsertMember(ctx context.Context, in MemberInput) (Member, error) {
	m, err := scanMember(t.tx.QueryRow(ctx, `INSERT INTO members (first_name, middle_name, last_name, email, phone)
VALUES ($1,$2,$3,$4,$5) RETURNING `+memberColumns, in.FirstName, in.MiddleName, in.LastName, in.Email, in.Phone))
	if db.IsUniqueViolation(err, uqMemberEmail) {
		return Member{}, ErrDuplicateEmail
	}
	return m, err
}

func (t *pgTx) UpdateMember(ctx context.Context, id int64, in MemberInput) (Member, error) {
	m, err := scanMember(t.tx.QueryRow(ctx, `UPDATE members SET first_name=$2, middle_name=$3, last_name=$4, email=$5, phone=$6, updated_at=NOW()
WHERE id=$1 AND deleted_at IS NULL RETURNING `+memberColumns, id, in.FirstName, in.MiddleName, in.LastName, in.Email, in.Phone))
	if db.IsUniqueViolation(err, uqMemberEmail) {
		return Member{}, ErrDuplicateEmail
	}
	return m, err
}

func (t *pgTx) SoftDeleteMember(ctx context.Context, id int64, at time.Time) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE members SET deleted_at=$2, updated_at=NOW() WHERE id=$1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (t *pgTx) SetVerified(ctx context.Context, id int64, verified bool) error {
	_, err := t.tx.Exec(ctx, `UPDATE members SET is_verified=$2, updated_at=NOW() WHERE id=$1`, id, verified)
	return err
}

func (t *pgTx) InsertDependent(ctx context.Context, memberID int64, in DependentInput) (Dependent, error) {
	return scanDependent(t.tx.QueryRow(ctx, `INSERT INTO dependents (member_id, name, relationship, status, certificate_status)
VALUES ($1,$2,$3,'pending','pending') RETURNING `+dependentColumns, memberID, in.Name, in.Relationship))
}

func (t *pgTx) GetDependentForUpdate(ctx context.Context, id int64) (Dependent, error) {
	return scanDependent(t.tx.QueryRow(ctx, `SELECT `+dependentColumns+` FROM dependents WHERE id=$1 FOR UPDATE`, id))
}

func (t *pgTx) UpdateDependentStatus(ctx context.Context, d Dependent) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE dependents SET status=$2, certificate_status=$3, updated_at=NOW() WHERE id=$1`, d.ID, d.Status, d.CertificateStatus)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDependentNotFound
	}
	return nil
}

func (t *pgTx) DeleteDependent(ctx context.Context, id int64) error {
	cmd, err := t.tx.Exec(ctx, `DELETE FROM dependents WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDependentNotFound
	}
	return nil
}

func (t *pgTx) ListDependents(ctx context.Context, memberID int64) ([]Dependent, error) {
	return listDependents(ctx, t.tx, memberID)
}
