package penalties

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

type memRepo struct {
	ledger *accountingtest.Ledger

	mu        sync.Mutex
	penalties map[int64]Penalty
	nextID    int64
}

func newMemRepo(ledger *accountingtest.Ledger) *memRepo {
	return &memRepo{ledger: ledger, penalties: map[int64]Penalty{}}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.ledger.Atomically(func(atx accounting.TxRepository) error {
		r.mu.Lock()
		snapshot := make(map[int64]Penalty, len(r.penalties))
		for k, v := range r.penalties {
			snapshot[k] = v
		}
		r.mu.Unlock()
		if err := fn(ctx, &memTx{TxRepository: atx, r: r}); err != nil {
			r.mu.Lock()
			r.penalties = snapshot
			r.mu.Unlock()
			return err
		}
		return nil
	})
}

func (r *memRepo) Get(_ context.Context, id int64) (Penalty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.penalties[id]
	if !ok {
		return Penalty{}, ErrPenaltyNotFound
	}
	return p, nil
}

func (r *memRepo) List(_ context.Context, filter ListFilter) ([]Penalty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Penalty
	for _, p := range r.penalties {
		if filter.MemberID > 0 && p.MemberID != filter.MemberID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// find returns the penalty for a member-month, if any.
func (r *memRepo) find(memberID int64, month shared.Month) (Penalty, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.penalties {
		if p.MemberID == memberID && p.Month == month {
			return p, true
		}
	}
	return Penalty{}, false
}

type memTx struct {
	accounting.TxRepository
	r *memRepo
}

func (t *memTx) PenalisedMonths(_ context.Context, from, to shared.Month) (map[int64]map[shared.Month]bool, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	out := make(map[int64]map[shared.Month]bool)
	for _, p := range t.r.penalties {
		if p.Month.Before(from) || !p.Month.Before(to) {
			continue
		}
		if out[p.MemberID] == nil {
			out[p.MemberID] = make(map[shared.Month]bool)
		}
		out[p.MemberID][p.Month] = true
	}
	return out, nil
}

func (t *memTx) InsertPenalty(_ context.Context, p Penalty) (Penalty, bool, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	for _, existing := range t.r.penalties {
		if existing.MemberID == p.MemberID && existing.Month == p.Month {
			return Penalty{}, false, nil
		}
	}
	t.r.nextID++
	p.ID = t.r.nextID
	t.r.penalties[p.ID] = p
	return p, true, nil
}

func (t *memTx) GetPenaltyForUpdate(ctx context.Context, id int64) (Penalty, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	p, ok := t.r.penalties[id]
	if !ok {
		return Penalty{}, ErrPenaltyNotFound
	}
	return p, nil
}

func (t *memTx) UpdatePenalty(_ context.Context, p Penalty) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.penalties[p.ID] = p
	return nil
}

type totalsStub map[int64]map[shared.Month]decimal.Decimal

func (s totalsStub) MonthlyTotals(_ context.Context, year int) (map[int64]map[shared.Month]decimal.Decimal, error) {
	out := make(map[int64]map[shared.Month]decimal.Decimal)
	for memberID, months := range s {
		for m, total := range months {
			if m.Year != year {
				continue
			}
			if out[memberID] == nil {
				out[memberID] = make(map[shared.Month]decimal.Decimal)
			}
			out[memberID][m] = total
		}
	}
	return out, nil
}

type directoryStub []members.Member

func (d directoryStub) ListActive(context.Context) ([]members.Member, error) {
	return d, nil
}

type settingsStub struct {
	requirement decimal.Decimal
	rate        decimal.Decimal
}

func (s settingsStub) MonthlyContribution(context.Context) (decimal.Decimal, error) {
	return s.requirement, nil
}

func (s settingsStub) PenaltyRate(context.Context) (decimal.Decimal, error) {
	return s.rate, nil
}
