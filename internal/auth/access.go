package auth

import (
	"fmt"
	"slices"
	"sort"
)

// Role is a coarse user category. The set is closed; see ParseRole.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCompany Role = "company"
	RoleExpert  Role = "expert"
	RoleUser    Role = "user"
)

// Roles lists every valid role from highest to lowest rank.
var Roles = []Role{RoleAdmin, RoleCompany, RoleExpert, RoleUser}

var roleRank = map[Role]int{
	RoleAdmin:   4, //nolint:mnd // hierarchy rank
	RoleCompany: 3, //nolint:mnd // hierarchy rank
	RoleExpert:  2, //nolint:mnd // hierarchy rank
	RoleUser:    1,
}

// ParseRole converts a stored or submitted role name into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleRank[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Rank returns the hierarchy rank of the role. Unknown roles rank 0.
func (r Role) Rank() int {
	return roleRank[r]
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// Module is a feature area gated by role permissions.
type Module string

const (
	ModuleDashboard    Module = "dashboard"
	ModuleUsers        Module = "users"
	ModuleCompanies    Module = "companies"
	ModuleJobs         Module = "jobs"
	ModuleCategories   Module = "categories"
	ModuleSubscription Module = "subscription"
	ModuleAudit        Module = "audit"
)

// Modules lists every known module.
var Modules = []Module{
	ModuleDashboard, ModuleUsers, ModuleCompanies, ModuleJobs,
	ModuleCategories, ModuleSubscription, ModuleAudit,
}

// PermissionKind is one action within a module.
type PermissionKind string

const (
	PermView   PermissionKind = "view"
	PermCreate PermissionKind = "create"
	PermEdit   PermissionKind = "edit"
	PermDelete PermissionKind = "delete"
)

// AllPermissions is the full permission set in display order.
var AllPermissions = []PermissionKind{PermView, PermCreate, PermEdit, PermDelete}

func (k PermissionKind) valid() bool {
	return slices.Contains(AllPermissions, k)
}

// Access is the resolved envelope for one (module, role) pair.
type Access struct {
	Allowed     bool             `json:"allowed"`
	Permissions []PermissionKind `json:"permissions"`
}

// Can reports whether the envelope includes kind.
func (a Access) Can(kind PermissionKind) bool {
	return slices.Contains(a.Permissions, kind)
}

// denied is the fail-closed result.
func denied() Access {
	return Access{Allowed: false, Permissions: []PermissionKind{}}
}

// AccessEntries is the raw input to NewAccessTable.
type AccessEntries map[Module]map[Role][]PermissionKind

// AccessTable is an immutable module → role → permissions mapping.
// Build one with NewAccessTable; the zero value denies everything.
type AccessTable struct {
	entries map[Module]map[Role]Access
}

// NewAccessTable validates entries and freezes them into a table.
//
// Every known module must be present with an entry for every role (an
// empty slice denies). Module, role and permission names must be known,
// and a higher-ranked role must hold every permission a lower-ranked role
// holds on the same module.
func NewAccessTable(entries AccessEntries) (*AccessTable, error) {
	for m := range entries {
		if !slices.Contains(Modules, m) {
			return nil, fmt.Errorf("%w: unknown module %q", ErrInvalidAccessTable, m)
		}
	}

	t := &AccessTable{entries: make(map[Module]map[Role]Access, len(Modules))}
	for _, m := range Modules {
		byRole, ok := entries[m]
		if !ok {
			return nil, fmt.Errorf("%w: module %q has no entry", ErrInvalidAccessTable, m)
		}
		for r := range byRole {
			if !r.Valid() {
				return nil, fmt.Errorf("%w: module %q: unknown role %q", ErrInvalidAccessTable, m, r)
			}
		}

		resolved := make(map[Role]Access, len(Roles))
		for _, r := range Roles {
			perms, ok := byRole[r]
			if !ok {
				return nil, fmt.Errorf("%w: module %q has no entry for role %q", ErrInvalidAccessTable, m, r)
			}
			set, err := normalisePermissions(perms)
			if err != nil {
				return nil, fmt.Errorf("%w: module %q role %q: %w", ErrInvalidAccessTable, m, r, err)
			}
			resolved[r] = Access{Allowed: len(set) > 0, Permissions: set}
		}
		t.entries[m] = resolved
	}

	if err := t.checkMonotone(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustAccessTable is NewAccessTable for package-level tables; it panics on error.
func MustAccessTable(entries AccessEntries) *AccessTable {
	t, err := NewAccessTable(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// normalisePermissions dedupes and orders a permission list.
func normalisePermissions(perms []PermissionKind) ([]PermissionKind, error) {
	set := make([]PermissionKind, 0, len(perms))
	for _, p := range perms {
		if !p.valid() {
			return nil, fmt.Errorf("unknown permission %q", p)
		}
		if !slices.Contains(set, p) {
			set = append(set, p)
		}
	}
	sort.Slice(set, func(i, j int) bool {
		return slices.Index(AllPermissions, set[i]) < slices.Index(AllPermissions, set[j])
	})
	return set, nil
}

// checkMonotone verifies that each role holds a superset of every lower role.
// Roles is ordered high to low, so comparing neighbours is sufficient.
func (t *AccessTable) checkMonotone() error {
	for _, m := range Modules {
		for i := 0; i+1 < len(Roles); i++ {
			hi, lo := Roles[i], Roles[i+1]
			for _, p := range t.entries[m][lo].Permissions {
				if !t.entries[m][hi].Can(p) {
					return fmt.Errorf("%w: module %q: role %q lacks %q held by lower role %q",
						ErrInvalidAccessTable, m, hi, p, lo)
				}
			}
		}
	}
	return nil
}

// Resolve returns the access envelope for a module and role name.
// Unknown modules or roles fail closed with an empty permission set.
func (t *AccessTable) Resolve(module, role string) Access {
	if t == nil {
		return denied()
	}
	byRole, ok := t.entries[Module(module)]
	if !ok {
		return denied()
	}
	a, ok := byRole[Role(role)]
	if !ok {
		return denied()
	}
	return Access{Allowed: a.Allowed, Permissions: slices.Clone(a.Permissions)}
}

// ForRole returns the resolved envelope of every module for one role.
func (t *AccessTable) ForRole(role string) map[Module]Access {
	out := make(map[Module]Access, len(Modules))
	for _, m := range Modules {
		out[m] = t.Resolve(string(m), role)
	}
	return out
}

var defaultAccessTable = MustAccessTable(AccessEntries{
	ModuleDashboard: {
		RoleAdmin:   {PermView},
		RoleCompany: {PermView},
		RoleExpert:  {PermView},
		RoleUser:    {PermView},
	},
	ModuleUsers: {
		RoleAdmin:   AllPermissions,
		RoleCompany: {PermView},
		RoleExpert:  {},
		RoleUser:    {},
	},
	ModuleCompanies: {
		RoleAdmin:   AllPermissions,
		RoleCompany: {PermView, PermEdit},
		RoleExpert:  {PermView},
		RoleUser:    {PermView},
	},
	ModuleJobs: {
		RoleAdmin:   AllPermissions,
		RoleCompany: AllPermissions,
		RoleExpert:  {PermView},
		RoleUser:    {PermView},
	},
	ModuleCategories: {
		RoleAdmin:   AllPermissions,
		RoleCompany: {PermView},
		RoleExpert:  {PermView},
		RoleUser:    {PermView},
	},
	ModuleSubscription: {
		RoleAdmin:   AllPermissions,
		RoleCompany: {PermView, PermEdit},
		RoleExpert:  {PermView, PermEdit},
		RoleUser:    {PermView},
	},
	ModuleAudit: {
		RoleAdmin:   {PermView},
		RoleCompany: {},
		RoleExpert:  {},
		RoleUser:    {},
	},
})

// DefaultAccessTable returns the built-in role → permission table.
func DefaultAccessTable() *AccessTable {
	return defaultAccessTable
}

// Resolve looks a module and role up in the default table.
func Resolve(module, role string) Access {
	return defaultAccessTable.Resolve(module, role)
}
