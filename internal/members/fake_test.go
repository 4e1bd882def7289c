package members

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memRepo struct {
	mu         sync.Mutex
	members    map[int64]Member
	dependents map[int64]Dependent
	nextID     int64
	verifyOps  int
}

func newMemRepo() *memRepo {
	return &memRepo{members: map[int64]Member{}, dependents: map[int64]Dependent{}}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := make(map[int64]Member, len(r.members))
	for k, v := range r.members {
		members[k] = v
	}
	deps := make(map[int64]Dependent, len(r.dependents))
	for k, v := range r.dependents {
		deps[k] = v
	}
	if err := fn(ctx, memTx{r}); err != nil {
		r.members, r.dependents = members, deps
		return err
	}
	return nil
}

func (r *memRepo) List(_ context.Context, filter ListFilter) ([]Member, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Member
	for _, m := range r.sortedActive() {
		if filter.Search != "" && !strings.Contains(strings.ToLower(m.FullName()+" "+m.Email), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Verified != nil && m.IsVerified != *filter.Verified {
			continue
		}
		out = append(out, m)
	}
	total := len(out)
	start := (filter.Page - 1) * filter.PerPage
	if start >= total {
		return nil, total, nil
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (r *memRepo) ListActive(context.Context) ([]Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedActive(), nil
}

func (r *memRepo) sortedActive() []Member {
	var out []Member
	for _, m := range r.members {
		if m.DeletedAt == nil {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memRepo) Get(_ context.Context, id int64) (Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok || m.DeletedAt != nil {
		return Member{}, ErrMemberNotFound
	}
	return m, nil
}

func (r *memRepo) ListDependents(_ context.Context, memberID int64) ([]Dependent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dependentsOf(memberID), nil
}

func (r *memRepo) dependentsOf(memberID int64) []Dependent {
	var out []Dependent
	for _, d := range r.dependents {
		if d.MemberID == memberID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memTx struct{ r *memRepo }

func (t memTx) LockMember(_ context.Context, id int64) (Member, error) {
	m, ok := t.r.members[id]
	if !ok || m.DeletedAt != nil {
		return Member{}, ErrMemberNotFound
	}
	return m, nil
}

func (t memTx) InsertMember(_ context.Context, in MemberInput) (Member, error) {
	for _, m := range t.r.members {
		if m.DeletedAt == nil && m.Email == in.Email {
			return Member{}, ErrDuplicateEmail
		}
	}
	t.r.nextID++
	m := Member{ID: t.r.nextID, FirstName: in.FirstName, MiddleName: in.MiddleName, LastName: in.LastName, Email: in.Email, Phone: in.Phone, CreatedAt: time.Now()}
	t.r.members[m.ID] = m
	return m, nil
}

func (t memTx) UpdateMember(_ context.Context, id int64, in MemberInput) (Member, error) {
	m := t.r.members[id]
	m.FirstName, m.MiddleName, m.LastName, m.Email, m.Phone = in.FirstName, in.MiddleName, in.LastName, in.Email, in.Phone
	t.r.members[id] = m
	return m, nil
}

func (t memTx) SoftDeleteMember(_ context.Context, id int64, at time.Time) error {
	m := t.r.members[id]
	m.DeletedAt = &at
	t.r.members[id] = m
	return nil
}

func (t memTx) SetVerified(_ context.Context, id int64, verified bool) error {
	t.r.verifyOps++
	m := t.r.members[id]
	m.IsVerified = verified
	t.r.members[id] = m
	return nil
}

func (t memTx) InsertDependent(_ context.Context, memberID int64, in DependentInput) (Dependent, error) {
	t.r.nextID++
	d := Dependent{ID: t.r.nextID, MemberID: memberID, Name: in.Name, Relationship: in.Relationship, Status: StatusPending, CertificateStatus: StatusPending}
	t.r.dependents[d.ID] = d
	return d, nil
}

func (t memTx) GetDependentForUpdate(_ context.Context, id int64) (Dependent, error) {
	d, ok := t.r.dependents[id]
	if !ok {
		return Dependent{}, ErrDependentNotFound
	}
	return d, nil
}

func (t memTx) UpdateDependentStatus(_ context.Context, d Dependent) error {
	t.r.dependents[d.ID] = d
	return nil
}

func (t memTx) DeleteDependent(_ context.Context, id int64) error {
	delete(t.r.dependents, id)
	return nil
}

func (t memTx) ListDependents(_ context.Context, memberID int64) ([]Dependent, error) {
	return t.r.dependentsOf(memberID), nil
}
