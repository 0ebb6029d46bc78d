package sparql

import "strings"

// Clauses counts the update operations emitted for one transaction.
//
// Every builder contributing to the transaction's update request shares the
// same *Clauses, so an operation built after another, even by a different
// builder, is preceded by the ";" separator.
type Clauses struct {
	n int
}

// Count returns the number of operations emitted so far.
func (c *Clauses) Count() int {
	return c.n
}

// open registers a new operation and reports whether it needs a separator.
func (c *Clauses) open() bool {
	c.n++
	return c.n > 1
}

// UpdateBuilder composes the operations of a SPARQL update request.
type UpdateBuilder struct {
	clauses *Clauses
	parts   []string

	// pendingDelete is set between a Delete and the Insert/Where that
	// completes the same "delete {} insert {} where {}" operation.
	pendingDelete bool
}

// NewUpdate returns a builder that counts its operations in clauses.
func NewUpdate(clauses *Clauses) *UpdateBuilder {
	if clauses == nil {
		clauses = &Clauses{}
	}
	return &UpdateBuilder{clauses: clauses}
}

func (u *UpdateBuilder) operation() {
	if u.clauses.open() {
		u.parts = append(u.parts, ";")
	}
}

// Delete starts a "delete { ... }" operation. A following Insert joins it.
func (u *UpdateBuilder) Delete(fn func(*Pattern)) *UpdateBuilder {
	u.operation()
	u.parts = append(u.parts, block("delete", Build(fn).String()))
	u.pendingDelete = true
	return u
}

// Insert appends "insert { ... }", starting a new operation unless it
// directly follows a Delete.
func (u *UpdateBuilder) Insert(fn func(*Pattern)) *UpdateBuilder {
	if !u.pendingDelete {
		u.operation()
	}
	u.pendingDelete = false
	u.parts = append(u.parts, block("insert", Build(fn).String()))
	return u
}

// InsertData appends a complete "insert data { ... }" operation.
func (u *UpdateBuilder) InsertData(fn func(*Pattern)) *UpdateBuilder {
	u.operation()
	u.pendingDelete = false
	u.parts = append(u.parts, block("insert data", Build(fn).String()))
	return u
}

// DeleteWhere appends a complete "delete where { ... }" operation.
func (u *UpdateBuilder) DeleteWhere(fn func(*Pattern)) *UpdateBuilder {
	u.operation()
	u.pendingDelete = false
	u.parts = append(u.parts, block("delete where", Build(fn).String()))
	return u
}

// Where closes the current operation with "where { ... }".
func (u *UpdateBuilder) Where(fn func(*Pattern)) *UpdateBuilder {
	u.pendingDelete = false
	u.parts = append(u.parts, block("where", Build(fn).String()))
	return u
}

// Raw appends text verbatim after dedenting. It does not count as an
// operation.
func (u *UpdateBuilder) Raw(text string) *UpdateBuilder {
	if t := dedent(text); t != "" {
		u.parts = append(u.parts, t)
	}
	return u
}

// Clauses returns the shared operation counter.
func (u *UpdateBuilder) Clauses() *Clauses {
	return u.clauses
}

// String renders the update body without prefix declarations.
func (u *UpdateBuilder) String() string {
	return strings.Join(u.parts, "\n")
}

// Concat joins independently built updates into one request body.
func Concat(updates ...*UpdateBuilder) string {
	var parts []string
	for _, u := range updates {
		if s := u.String(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// QueryBuilder composes a "construct { ... } where { ... }" query.
type QueryBuilder struct {
	parts []string
}

// NewQuery returns an empty query builder.
func NewQuery() *QueryBuilder {
	return &QueryBuilder{}
}

// Construct sets the construct template.
func (q *QueryBuilder) Construct(fn func(*Pattern)) *QueryBuilder {
	q.parts = append(q.parts, block("construct", Build(fn).String()))
	return q
}

// Where sets the where clause.
func (q *QueryBuilder) Where(fn func(*Pattern)) *QueryBuilder {
	q.parts = append(q.parts, block("where", Build(fn).String()))
	return q
}

// String renders the query body without prefix declarations.
func (q *QueryBuilder) String() string {
	return strings.Join(q.parts, "\n")
}
