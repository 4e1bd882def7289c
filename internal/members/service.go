package members

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/harambee-fund/harambee/internal/shared"
)

// Repository abstracts member persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filter ListFilter) ([]Member, int, error)
	ListActive(ctx context.Context) ([]Member, error)
	Get(ctx context.Context, id int64) (Member, error)
	ListDependents(ctx context.Context, memberID int64) ([]Dependent, error)
}

// TxRepository exposes transactional member operations.
type TxRepository interface {
	LockMember(ctx context.Context, id int64) (Member, error)
	InsertMember(ctx context.Context, in MemberInput) (Member, error)
	UpdateMember(ctx context.Context, id int64, in MemberInput) (Member, error)
	SoftDeleteMember(ctx context.Context, id int64, at time.Time) error
	SetVerified(ctx context.Context, id int64, verified bool) error
	InsertDependent(ctx context.Context, memberID int64, in DependentInput) (Dependent, error)
	GetDependentForUpdate(ctx context.Context, id int64) (Dependent, error)
	UpdateDependentStatus(ctx context.Context, d Dependent) error
	DeleteDependent(ctx context.Context, id int64) error
	ListDependents(ctx context.Context, memberID int64) ([]Dependent, error)
}

// AuditPort records member changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates member and dependent changes.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the members service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create registers a member.
func (s *Service) Create(ctx context.Context, actorID int64, in MemberInput) (Member, error) {
	in = in.normalise()
	if err := in.Validate(); err != nil {
		return Member{}, err
	}
	var m Member
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		m, err = tx.InsertMember(ctx, in)
		return err
	})
	if err != nil {
		return Member{}, err
	}
	s.record(ctx, actorID, "member.create", "member", m.ID, map[string]any{"email": m.Email})
	return m, nil
}

// Get returns a member with dependents.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	deps, err := s.repo.ListDependents(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Member: m, Dependents: deps}, nil
}

// Exists reports whether id names an active member.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := s.repo.Get(ctx, id)
	if err == nil {
		return true, nil
	}
	if shared.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// List returns a page of active members.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Member, shared.Pagination, error) {
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	filter.Search = strings.TrimSpace(filter.Search)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// ListActive returns every non-deleted member.
func (s *Service) ListActive(ctx context.Context) ([]Member, error) {
	return s.repo.ListActive(ctx)
}

// Update edits contact details.
func (s *Service) Update(ctx context.Context, actorID, id int64, in MemberInput) (Member, error) {
	in = in.normalise()
	if err := in.Validate(); err != nil {
		return Member{}, err
	}
	var m Member
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.LockMember(ctx, id); err != nil {
			return err
		}
		var err error
		m, err = tx.UpdateMember(ctx, id, in)
		return err
	})
	if err != nil {
		return Member{}, err
	}
	s.record(ctx, actorID, "member.update", "member", id, nil)
	return m, nil
}

// Delete soft-deletes a member. Financial history stays linked to the row.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.LockMember(ctx, id); err != nil {
			return err
		}
		return tx.SoftDeleteMember(ctx, id, s.now())
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "member.delete", "member", id, nil)
	return nil
}

// AddDependent attaches a pending dependent, which clears the verified flag.
func (s *Service) AddDependent(ctx context.Context, actorID, memberID int64, in DependentInput) (Dependent, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Relationship = strings.TrimSpace(in.Relationship)
	verr := &shared.ValidationError{}
	if in.Name == "" {
		verr.Add("name", "is required")
	}
	if in.Relationship == "" {
		verr.Add("relationship", "is required")
	}
	if err := verr.OrNil(); err != nil {
		return Dependent{}, err
	}
	var dep Dependent
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		member, err := tx.LockMember(ctx, memberID)
		if err != nil {
			return err
		}
		dep, err = tx.InsertDependent(ctx, memberID, in)
		if err != nil {
			return err
		}
		return s.applyDependentChange(ctx, tx, member)
	})
	if err != nil {
		return Dependent{}, err
	}
	s.record(ctx, actorID, "member.dependent.add", "member", memberID, map[string]any{"dependent_id": dep.ID})
	return dep, nil
}

// SetDependentStatus records the review outcome of a dependent.
func (s *Service) SetDependentStatus(ctx context.Context, actorID, dependentID int64, status ApprovalStatus) (Dependent, error) {
	return s.changeDependent(ctx, actorID, dependentID, "member.dependent.status", func(d *Dependent) error {
		if !status.Valid() {
			return shared.NewValidationError("status", "must be pending, approved or rejected")
		}
		d.Status = status
		return nil
	})
}

// SetCertificateStatus records the review outcome of a dependent's certificate.
func (s *Service) SetCertificateStatus(ctx context.Context, actorID, dependentID int64, status ApprovalStatus) (Dependent, error) {
	return s.changeDependent(ctx, actorID, dependentID, "member.dependent.certificate", func(d *Dependent) error {
		if !status.Valid() {
			return shared.NewValidationError("certificate_status", "must be pending, approved or rejected")
		}
		d.CertificateStatus = status
		return nil
	})
}

// RemoveDependent deletes a dependent.
func (s *Service) RemoveDependent(ctx context.Context, actorID, dependentID int64) error {
	var memberID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		dep, err := tx.GetDependentForUpdate(ctx, dependentID)
		if err != nil {
			return err
		}
		memberID = dep.MemberID
		member, err := tx.LockMember(ctx, dep.MemberID)
		if err != nil {
			return err
		}
		if err := tx.DeleteDependent(ctx, dependentID); err != nil {
			return err
		}
		return s.applyDependentChange(ctx, tx, member)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "member.dependent.remove", "member", memberID, map[string]any{"dependent_id": dependentID})
	return nil
}

func (s *Service) changeDependent(ctx context.Context, actorID, dependentID int64, action string, mutate func(*Dependent) error) (Dependent, error) {
	var dep Dependent
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		dep, err = tx.GetDependentForUpdate(ctx, dependentID)
		if err != nil {
			return err
		}
		member, err := tx.LockMember(ctx, dep.MemberID)
		if err != nil {
			return err
		}
		if err := mutate(&dep); err != nil {
			return err
		}
		if err := tx.UpdateDependentStatus(ctx, dep); err != nil {
			return err
		}
		return s.applyDependentChange(ctx, tx, member)
	})
	if err != nil {
		return Dependent{}, err
	}
	s.record(ctx, actorID, action, "member", dep.MemberID, map[string]any{
		"dependent_id":       dep.ID,
		"status":             dep.Status,
		"certificate_status": dep.CertificateStatus,
	})
	return dep, nil
}

// applyDependentChange is the only place the verified flag is written.
func (s *Service) applyDependentChange(ctx context.Context, tx TxRepository, member Member) error {
	deps, err := tx.ListDependents(ctx, member.ID)
	if err != nil {
		return err
	}
	verified := RecomputeVerification(member, deps)
	if verified == member.IsVerified {
		return nil
	}
	return tx.SetVerified(ctx, member.ID, verified)
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
}
