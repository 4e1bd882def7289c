package rbac

import (
	"fmt"
	"sort"
	"strings"
)

// Role is the closed set of administrative roles.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleTreasurer  Role = "treasurer"
	RoleSecretary  Role = "secretary"
	RoleMember     Role = "member"
)

// Capability represents an atomic permission checked by handlers.
type Capability string

const (
	MembersView         Capability = "members.view"
	MembersManage       Capability = "members.manage"
	ContributionsRecord Capability = "contributions.record"
	ContributionsView   Capability = "contributions.view"
	LoansManage         Capability = "loans.manage"
	PenaltiesManage     Capability = "penalties.manage"
	DisastersManage     Capability = "disasters.manage"
	AccountingView      Capability = "accounting.view"
	AccountingPost      Capability = "accounting.post"
	SettingsManage      Capability = "settings.manage"
	AuditView           Capability = "audit.view"
)

var allCapabilities = []Capability{
	MembersView, MembersManage, ContributionsRecord, ContributionsView, LoansManage,
	PenaltiesManage, DisastersManage, AccountingView, AccountingPost, SettingsManage, AuditView,
}

// super_admin is granted everything and is not listed here.
var grants = map[Role][]Capability{
	RoleAdmin: {
		MembersView, MembersManage, ContributionsRecord, ContributionsView, LoansManage,
		PenaltiesManage, DisastersManage, AccountingView, AuditView,
	},
	RoleTreasurer: {
		MembersView, ContributionsRecord, ContributionsView, LoansManage, PenaltiesManage,
		DisastersManage, AccountingView, AccountingPost,
	},
	RoleSecretary: {MembersView, MembersManage, ContributionsView},
	RoleMember:    {},
}

var matrix = buildMatrix()

func buildMatrix() map[Role]map[Capability]struct{} {
	out := make(map[Role]map[Capability]struct{}, len(grants)+1)
	all := make(map[Capability]struct{}, len(allCapabilities))
	for _, c := range allCapabilities {
		all[c] = struct{}{}
	}
	out[RoleSuperAdmin] = all
	for role, caps := range grants {
		set := make(map[Capability]struct{}, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		out[role] = set
	}
	return out
}

// ParseRole normalises raw into a known role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := matrix[role]; !ok {
		return "", fmt.Errorf("rbac: unknown role %q", raw)
	}
	return role, nil
}

// Can reports whether role holds capability. Unknown roles hold nothing.
func Can(role Role, capability Capability) bool {
	caps, ok := matrix[role]
	if !ok {
		return false
	}
	_, ok = caps[capability]
	return ok
}

// Capabilities lists the capabilities granted to role in a stable order.
func Capabilities(role Role) []Capability {
	caps := make([]Capability, 0, len(matrix[role]))
	for c := range matrix[role] {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// Roles returns every role, most privileged first.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleTreasurer, RoleSecretary, RoleMember}
}
