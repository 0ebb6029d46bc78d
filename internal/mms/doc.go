// Package mms provides the foundational vocabulary shared by every other
// package: scope kinds, permissions, roles, ontology IRIs and the error
// taxonomy returned to callers.
//
// This package contains type definitions only. All other internal packages
// import mms; mms imports nothing internal.
//
// Key design constraints:
//   - Scope identifiers are validated upstream; nothing here re-validates them
//   - Every failure surfaced to a caller is an *Error carrying exactly one
//     Category and one human-readable message
//   - Permissions and roles are closed sets, enumerated here and nowhere else
package mms
