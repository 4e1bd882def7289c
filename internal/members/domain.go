// Package members manages member records, their dependents and the derived
// verification flag.
package members

import (
	"strings"
	"time"

	"github.com/harambee-fund/harambee/internal/shared"
)

// ApprovalStatus tracks review of a dependent or their certificate.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ApprovalStatus) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

var (
	// ErrMemberNotFound indicates a missing or soft-deleted member.
	ErrMemberNotFound = shared.NotFoundf("members: member")
	// ErrDependentNotFound indicates a missing dependent.
	ErrDependentNotFound = shared.NotFoundf("members: dependent")
	// ErrDuplicateEmail indicates another member already uses the email.
	ErrDuplicateEmail = shared.Rule("A member with this email already exists")
)

// Member is a person belonging to the fund.
type Member struct {
	ID         int64      `json:"id"`
	FirstName  string     `json:"first_name"`
	MiddleName string     `json:"middle_name,omitempty"`
	LastName   string     `json:"last_name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone,omitempty"`
	IsVerified bool       `json:"is_verified"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// FullName joins the non-empty name parts.
func (m Member) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{m.FirstName, m.MiddleName, m.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Dependent is a person covered through a member.
type Dependent struct {
	ID                int64          `json:"id"`
	MemberID          int64          `json:"member_id"`
	Name              string         `json:"name"`
	Relationship      string         `json:"relationship"`
	Status            ApprovalStatus `json:"status"`
	CertificateStatus ApprovalStatus `json:"certificate_status"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Detail bundles a member with their dependents.
type Detail struct {
	Member
	Dependents []Dependent `json:"dependents"`
}

// MemberInput carries editable member fields.
type MemberInput struct {
	FirstName  string
	MiddleName string
	LastName   string
	Email      string
	Phone      string
}

func (in MemberInput) normalise() MemberInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.MiddleName = strings.TrimSpace(in.MiddleName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}

// Validate checks required member fields.
func (in MemberInput) Validate() error {
	verr := &shared.ValidationError{}
	if in.FirstName == "" {
		verr.Add("first_name", "is required")
	}
	if in.LastName == "" {
		verr.Add("last_name", "is required")
	}
	if in.Email == "" {
		verr.Add("email", "is required")
	} else if !strings.Contains(in.Email, "@") {
		verr.Add("email", "must be a valid email")
	}
	return verr.OrNil()
}

// DependentInput carries the fields of a new dependent.
type DependentInput struct {
	Name         string
	Relationship string
}

// ListFilter narrows member listings.
type ListFilter struct {
	Search   string
	Verified *bool
	Page     int
	PerPage  int
}
