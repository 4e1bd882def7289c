package debts

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

	mu     sync.Mutex
	debts  map[int64]Debt
	nextID int64
}

func newMemRepo(ledger *accountingtest.Ledger) *memRepo {
	return &memRepo{ledger: ledger, debts: map[int64]Debt{}}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.ledger.Atomically(func(atx accounting.TxRepository) error {
		r.mu.Lock()
		snapshot := make(map[int64]Debt, len(r.debts))
		for k, v := range r.debts {
			snapshot[k] = v
		}
		r.mu.Unlock()
		if err := fn(ctx, &memTx{TxRepository: atx, r: r}); err != nil {
			r.mu.Lock()
			r.debts = snapshot
			r.mu.Unlock()
			return err
		}
		return nil
	})
}

func (r *memRepo) Get(_ context.Context, id int64) (Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.debts[id]
	if !ok {
		return Debt{}, ErrDebtNotFound
	}
	return d, nil
}

func (r *memRepo) List(_ context.Context, filter ListFilter) ([]Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Debt
	for _, d := range r.debts {
		if filter.MemberID > 0 && d.MemberID != filter.MemberID {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memTx struct {
	accounting.TxRepository
	r *memRepo
}

func (t *memTx) LockMember(_ context.Context, id int64) (members.Member, error) {
	if id != 1 {
		return members.Member{}, members.ErrMemberNotFound
	}
	return members.Member{ID: 1, FirstName: "Amani"}, nil
}

func (t *memTx) InsertDebt(_ context.Context, d Debt) (Debt, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.nextID++
	d.ID = t.r.nextID
	t.r.debts[d.ID] = d
	return d, nil
}

func (t *memTx) GetDebtForUpdate(_ context.Context, id int64) (Debt, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	d, ok := t.r.debts[id]
	if !ok {
		return Debt{}, ErrDebtNotFound
	}
	return d, nil
}

func (t *memTx) UpdateDebt(_ context.Context, d Debt) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.debts[d.ID] = d
	return nil
}
