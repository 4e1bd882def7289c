package contributions

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/accounting"
	"github.com/harambee-fund/harambee/internal/accounting/accountingtest"
	"github.com/harambee-fund/harambee/internal/members"
	"github.com/harambee-fund/harambee/internal/shared"
)

// memStore keeps payments next to an in-memory ledger. Transactions run under the
// ledger's lock; mu only guards the store's own slices for readers.
type memStore struct {
	ledger *accountingtest.Ledger

	mu          sync.Mutex
	members     map[int64]members.Member
	payments    []Payment
	allocations []Allocation
	nextID      int64
	failLink    error
}

func newMemStore(ledger *accountingtest.Ledger, people ...members.Member) *memStore {
	s := &memStore{ledger: ledger, members: make(map[int64]members.Member)}
	for _, m := range people {
		s.members[m.ID] = m
	}
	return s
}

func (s *memStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return s.ledger.Atomically(func(atx accounting.TxRepository) error {
		s.mu.Lock()
		payments := append([]Payment(nil), s.payments...)
		allocations := append([]Allocation(nil), s.allocations...)
		s.mu.Unlock()
		if err := fn(ctx, &memTx{TxRepository: atx, s: s}); err != nil {
			s.mu.Lock()
			s.payments, s.allocations = payments, allocations
			s.mu.Unlock()
			return err
		}
		return nil
	})
}

func (s *memStore) MonthlyTotals(_ context.Context, year int) (map[int64]map[shared.Month]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]map[shared.Month]decimal.Decimal)
	for _, a := range s.allocations {
		if a.Month.Year != year {
			continue
		}
		if out[a.MemberID] == nil {
			out[a.MemberID] = make(map[shared.Month]decimal.Decimal)
		}
		out[a.MemberID][a.Month] = out[a.MemberID][a.Month].Add(a.Amount)
	}
	return out, nil
}

func (s *memStore) MemberMonthlyTotals(ctx context.Context, memberID int64, year int) (map[shared.Month]decimal.Decimal, error) {
	all, err := s.MonthlyTotals(ctx, year)
	if err != nil {
		return nil, err
	}
	return all[memberID], nil
}

func (s *memStore) ListPayments(_ context.Context, memberID int64) ([]Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Payment
	for _, p := range s.payments {
		if p.MemberID != memberID {
			continue
		}
		for _, a := range s.allocations {
			if a.PaymentID == p.ID {
				p.Allocations = append(p.Allocations, a)
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// monthTotals sums every allocation of the member by month.
func (s *memStore) monthTotals(memberID int64) map[shared.Month]decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[shared.Month]decimal.Decimal)
	for _, a := range s.allocations {
		if a.MemberID == memberID {
			out[a.Month] = out[a.Month].Add(a.Amount)
		}
	}
	return out
}

type memTx struct {
	accounting.TxRepository
	s *memStore
}

func (t *memTx) LockMember(_ context.Context, memberID int64) (members.Member, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	m, ok := t.s.members[memberID]
	if !ok || m.DeletedAt != nil {
		return members.Member{}, members.ErrMemberNotFound
	}
	return m, nil
}

func (t *memTx) MonthTotalsFrom(_ context.Context, memberID int64, from shared.Month) (map[shared.Month]decimal.Decimal, error) {
	out := make(map[shared.Month]decimal.Decimal)
	for m, v := range t.s.monthTotals(memberID) {
		if !m.Before(from) {
			out[m] = v
		}
	}
	return out, nil
}

func (t *memTx) InsertPayment(_ context.Context, p Payment) (Payment, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.nextID++
	p.ID = t.s.nextID
	t.s.payments = append(t.s.payments, p)
	return p, nil
}

func (t *memTx) InsertAllocations(_ context.Context, allocations []Allocation) ([]Allocation, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	out := make([]Allocation, len(allocations))
	for i, a := range allocations {
		t.s.nextID++
		a.ID = t.s.nextID
		out[i] = a
	}
	t.s.allocations = append(t.s.allocations, out...)
	return out, nil
}

func (t *memTx) LinkJournal(_ context.Context, paymentID, entryID int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.failLink != nil {
		return t.s.failLink
	}
	for i := range t.s.payments {
		if t.s.payments[i].ID == paymentID {
			t.s.payments[i].JournalEntryID = &entryID
		}
	}
	return nil
}

type directory struct {
	store *memStore
}

func (d directory) ListActive(context.Context) ([]members.Member, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	var out []members.Member
	for _, m := range d.store.members {
		if m.DeletedAt == nil {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d directory) Exists(_ context.Context, id int64) (bool, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	m, ok := d.store.members[id]
	return ok && m.DeletedAt == nil, nil
}

type fixedRequirement decimal.Decimal

func (f fixedRequirement) MonthlyContribution(context.Context) (decimal.Decimal, error) {
	return decimal.Decimal(f), nil
}
