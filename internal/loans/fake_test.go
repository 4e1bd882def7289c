package loans

import (
	"context"
	"sort"
	"sync"

	"github.com/harambee-fund/harambee/internal/accounting"
	"github.com/harambee-fund/harambee/internal/accounting/accountingtest"
	"github.com/harambee-fund/harambee/internal/members"
)

type memRepo struct {
	ledger *accountingtest.Ledger

	mu      sync.Mutex
	members map[int64]members.Member
	loans   map[int64]Loan
	nextID  int64
}

func newMemRepo(ledger *accountingtest.Ledger) *memRepo {
	return &memRepo{
		ledger:  ledger,
		members: map[int64]members.Member{1: {ID: 1, FirstName: "Amani", LastName: "Otieno"}},
		loans:   map[int64]Loan{},
	}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.ledger.Atomically(func(atx accounting.TxRepository) error {
		r.mu.Lock()
		snapshot := make(map[int64]Loan, len(r.loans))
		for k, v := range r.loans {
			snapshot[k] = v
		}
		r.mu.Unlock()
		if err := fn(ctx, &memTx{TxRepository: atx, r: r}); err != nil {
			r.mu.Lock()
			r.loans = snapshot
			r.mu.Unlock()
			return err
		}
		return nil
	})
}

func (r *memRepo) Get(_ context.Context, id int64) (Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.loans[id]
	if !ok {
		return Loan{}, ErrLoanNotFound
	}
	return l, nil
}

func (r *memRepo) List(_ context.Context, filter ListFilter) ([]Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Loan
	for _, l := range r.loans {
		if filter.MemberID > 0 && l.MemberID != filter.MemberID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type memTx struct {
	accounting.TxRepository
	r *memRepo
}

func (t *memTx) LockMember(_ context.Context, id int64) (members.Member, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	m, ok := t.r.members[id]
	if !ok {
		return members.Member{}, members.ErrMemberNotFound
	}
	return m, nil
}

func (t *memTx) InsertLoan(_ context.Context, l Loan) (Loan, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.nextID++
	l.ID = t.r.nextID
	t.r.loans[l.ID] = l
	return l, nil
}

func (t *memTx) GetLoanForUpdate(_ context.Context, id int64) (Loan, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	l, ok := t.r.loans[id]
	if !ok {
		return Loan{}, ErrLoanNotFound
	}
	return l, nil
}

func (t *memTx) UpdateLoan(_ context.Context, l Loan) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	if _, ok := t.r.loans[l.ID]; !ok {
		return ErrLoanNotFound
	}
	t.r.loans[l.ID] = l
	return nil
}
