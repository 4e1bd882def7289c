package disasters

import (
	"context"
	"sync"

	"github.com/harambee-fund/harambee/internal/accounting"
	"github.com/harambee-fund/harambee/internal/accounting/accountingtest"
	"github.com/harambee-fund/harambee/internal/members"
)

type memRepo struct {
	ledger *accountingtest.Ledger

	mu       sync.Mutex
	members  map[int64]members.Member
	payments []Payment
}

func newMemRepo(ledger *accountingtest.Ledger) *memRepo {
	return &memRepo{
		ledger:  ledger,
		members: map[int64]members.Member{1: {ID: 1, FirstName: "Amani", LastName: "Otieno"}},
	}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.ledger.Atomically(func(atx accounting.TxRepository) error {
		r.mu.Lock()
		snapshot := append([]Payment(nil), r.payments...)
		r.mu.Unlock()
		if err := fn(ctx, &memTx{TxRepository: atx, r: r}); err != nil {
			r.mu.Lock()
			r.payments = snapshot
			r.mu.Unlock()
			return err
		}
		return nil
	})
}

func (r *memRepo) Get(_ context.Context, id int64) (Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return Payment{}, ErrPaymentNotFound
}

func (r *memRepo) List(_ context.Context, memberID int64) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payment
	for _, p := range r.payments {
		if memberID == 0 || p.MemberID == memberID {
			out = append(out, p)
		}
	}
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

func (t *memTx) InsertPayment(_ context.Context, p Payment) (Payment, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	p.ID = int64(len(t.r.payments) + 1)
	t.r.payments = append(t.r.payments, p)
	return p, nil
}

func (t *memTx) LinkJournal(_ context.Context, paymentID, entryID int64) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	for i := range t.r.payments {
		if t.r.payments[i].ID == paymentID {
			t.r.payments[i].JournalEntryID = &entryID
		}
	}
	return nil
}
