package mms

import "fmt"

// ScopeKind identifies the level of the resource hierarchy a permission or
// condition applies to.
type ScopeKind string

const (
	ScopeCluster ScopeKind = "Cluster"
	ScopeOrg     ScopeKind = "Org"
	ScopeRepo    ScopeKind = "Repo"
	ScopeBranch  ScopeKind = "Branch"
	ScopeCommit  ScopeKind = "Commit"
	ScopeLock    ScopeKind = "Lock"
)

// scopePrefixes maps each kind to the prefixed name denoting the resource
// itself, e.g. "mor:" for the repository addressed by the request.
var scopePrefixes = map[ScopeKind]string{
	ScopeCluster: "m:",
	ScopeOrg:     "mo:",
	ScopeRepo:    "mor:",
	ScopeBranch:  "morb:",
	ScopeCommit:  "morc:",
	ScopeLock:    "morcl:",
}

// scopeParents defines the containment hierarchy. Locks live under commits,
// commits and branches live under repositories.
var scopeParents = map[ScopeKind]ScopeKind{
	ScopeOrg:    ScopeCluster,
	ScopeRepo:   ScopeOrg,
	ScopeBranch: ScopeRepo,
	ScopeCommit: ScopeRepo,
	ScopeLock:   ScopeCommit,
}

// Prefix returns the prefixed name of the resource at this scope.
func (k ScopeKind) Prefix() string {
	return scopePrefixes[k]
}

// Lineage returns the prefixed names of this scope followed by every
// enclosing scope up to the cluster, e.g. Repo -> [mor: mo: m:].
//
// A grant held at any scope in the lineage applies to the resource.
func (k ScopeKind) Lineage() []string {
	var out []string
	for kind, ok := k, true; ok; kind, ok = scopeParents[kind] {
		out = append(out, kind.Prefix())
	}
	return out
}

// Valid reports whether k is a known scope kind.
func (k ScopeKind) Valid() bool {
	_, ok := scopePrefixes[k]
	return ok
}

// Scope carries the already-validated identifiers addressed by one request.
// Empty fields mean the request does not address that level.
type Scope struct {
	Org    string `json:"org,omitempty"`
	Repo   string `json:"repo,omitempty"`
	Branch string `json:"branch,omitempty"`
	Commit string `json:"commit,omitempty"`
	Lock   string `json:"lock,omitempty"`
}

// String renders the scope as a path, used in log attributes.
func (s Scope) String() string {
	out := "/"
	if s.Org != "" {
		out = fmt.Sprintf("/orgs/%s", s.Org)
	}
	if s.Repo != "" {
		out += "/repos/" + s.Repo
	}
	if s.Branch != "" {
		out += "/branches/" + s.Branch
	}
	if s.Commit != "" {
		out += "/commits/" + s.Commit
	}
	if s.Lock != "" {
		out += "/locks/" + s.Lock
	}
	return out
}

// Permission is an action an actor may be granted over a scope.
type Permission string

const (
	PermissionCreateOrg    Permission = "CreateOrg"
	PermissionReadOrg      Permission = "ReadOrg"
	PermissionUpdateOrg    Permission = "UpdateOrg"
	PermissionCreateRepo   Permission = "CreateRepo"
	PermissionReadRepo     Permission = "ReadRepo"
	PermissionUpdateRepo   Permission = "UpdateRepo"
	PermissionCreateBranch Permission = "CreateBranch"
	PermissionReadBranch   Permission = "ReadBranch"
	PermissionUpdateBranch Permission = "UpdateBranch"
	PermissionReadCommit   Permission = "ReadCommit"
	PermissionCreateLock   Permission = "CreateLock"
	PermissionReadLock     Permission = "ReadLock"
	PermissionDeleteLock   Permission = "DeleteLock"
)

// Prefixed returns the permission's prefixed name in the object namespace.
func (p Permission) Prefixed() string {
	return "mms-object:Permission." + string(p)
}

// Role is a named bundle of permissions.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleWrite Role = "Write"
	RoleRead  Role = "Read"
)

// Prefixed returns the role's prefixed name in the object namespace.
func (r Role) Prefixed() string {
	return "mms-object:Role." + string(r)
}

// Roles lists roles in bootstrap order.
var Roles = []Role{RoleAdmin, RoleWrite, RoleRead}

// RolePermissions defines what each role permits.
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermissionCreateOrg, PermissionReadOrg, PermissionUpdateOrg,
		PermissionCreateRepo, PermissionReadRepo, PermissionUpdateRepo,
		PermissionCreateBranch, PermissionReadBranch, PermissionUpdateBranch,
		PermissionReadCommit,
		PermissionCreateLock, PermissionReadLock, PermissionDeleteLock,
	},
	RoleWrite: {
		PermissionReadOrg,
		PermissionReadRepo,
		PermissionCreateBranch, PermissionReadBranch, PermissionUpdateBranch,
		PermissionReadCommit,
		PermissionCreateLock, PermissionReadLock, PermissionDeleteLock,
	},
	RoleRead: {
		PermissionReadOrg, PermissionReadRepo, PermissionReadBranch,
		PermissionReadCommit, PermissionReadLock,
	},
}
