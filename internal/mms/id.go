package mms

import "regexp"

// idPattern admits identifiers usable both as IRI path segments and as the
// local part of a prefixed name.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_](?:[A-Za-z0-9_.-]{0,254}[A-Za-z0-9_-])?$`)

// ValidateID checks one resource identifier. field names it in the error.
func ValidateID(field, id string) error {
	if id == "" {
		return NewValidationError("%s is required", field)
	}
	if !idPattern.MatchString(id) {
		return NewValidationError("%s %q is not a valid identifier", field, id)
	}
	return nil
}

// Require validates the identifiers of s addressed by kinds. Every listed
// level must be present.
func (s Scope) Require(kinds ...ScopeKind) error {
	for _, k := range kinds {
		var field, id string
		switch k {
		case ScopeOrg:
			field, id = "org id", s.Org
		case ScopeRepo:
			field, id = "repo id", s.Repo
		case ScopeBranch:
			field, id = "branch id", s.Branch
		case ScopeCommit:
			field, id = "commit id", s.Commit
		case ScopeLock:
			field, id = "lock id", s.Lock
		default:
			continue
		}
		if err := ValidateID(field, id); err != nil {
			return err
		}
	}
	return nil
}
