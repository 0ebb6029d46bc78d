package engine

import (
	"github.com/roach88/mms/internal/condition"
	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/sparql"
	"github.com/roach88/mms/internal/store"
	"github.com/roach88/mms/internal/txn"
)

// Plan describes one transaction.
type Plan struct {
	// Txn is the resolved transaction. Update must have been built on its
	// clause counter.
	Txn *txn.Context

	// Operation names the plan in logs, metrics, the journal and events.
	Operation string

	// Conditions is the group whose guard form gates Update and whose
	// diagnostic form explains a failure.
	Conditions condition.Group

	// Update is the update body without prefix declarations. Its first
	// operation must write the audit node (see Mutation).
	Update string

	// Params are bound in addition to the transaction's standard ones.
	Params *sparql.Params

	// Construct and Where reconstruct the affected resources in the verify
	// query. Either may be nil.
	Construct func(*sparql.Pattern)
	Where     func(*sparql.Pattern)

	// Committed is an extra predicate over the verify graph. Nil means the
	// presence of the audit node alone decides. It must only test facts no
	// later request can change: a concurrent update may run between apply
	// and verify.
	Committed func(g *store.Graph, tx *txn.Context) bool
}

// Mutation is the business part of a single-operation update.
type Mutation struct {
	// Delete is an optional delete template, joined with the insert into
	// one "delete {} insert {} where {}" operation.
	Delete func(*sparql.Pattern)

	// Insert is the insert template. The audit node is added to it.
	Insert func(*sparql.Pattern)

	// Where is matched after the guards.
	Where func(*sparql.Pattern)
}

// BuildUpdate renders a single-operation update on tx's clause counter: the
// audit node joins m.Insert and the guard form of conds precedes m.Where.
func BuildUpdate(tx *txn.Context, conds condition.Group, m Mutation) string {
	u := tx.Update()
	if m.Delete != nil {
		u.Delete(m.Delete)
	}
	u.Insert(func(p *sparql.Pattern) {
		tx.Audit(p)
		if m.Insert != nil {
			m.Insert(p)
		}
	})
	u.Where(func(p *sparql.Pattern) {
		conds.Guard(p)
		if m.Where != nil {
			m.Where(p)
		}
	})
	return u.String()
}

// ReadPlan describes a permission-checked read. Reads write nothing and
// need no cleanup.
type ReadPlan struct {
	Txn        *txn.Context
	Operation  string
	Conditions condition.Group
	Params     *sparql.Params

	// Construct and Where select the resource once every condition holds.
	Construct func(*sparql.Pattern)
	Where     func(*sparql.Pattern)

	// Found decides whether the read located the resource. Nil means any
	// non-diagnostic triple counts.
	Found func(g *store.Graph, tx *txn.Context) bool
}

// Result is the outcome of a committed transaction or a successful read.
type Result struct {
	TransactionID string
	CommitID      string

	// Graph is the verify graph without the audit node and diagnostics.
	Graph *store.Graph

	// Passed lists the conditions that held, in declaration order.
	Passed []string
}

const (
	txnPredicateVar = "?__mms_txn_p"
	txnObjectVar    = "?__mms_txn_o"
)

func auditGraph() string {
	return "m-graph:" + mms.GraphTransaction
}
