// Package lock implements advisory, store-resident locks.
//
// A lock is a resource under a commit:
//
//	<.../commits/{commitId}/locks/{lockId}> a mms:Lock ;
//	    mms:commit <.../commits/{commitId}> ;
//	    mms:purpose "commit" .
//
// At most one lock may exist per (commit, purpose). Acquire and Release are
// ordinary executor transactions; exclusion comes only from their guards.
// Locks are advisory: writers that need mutual exclusion must go through
// the Manager.
package lock

import (
	"context"
	"log/slog"

	"github.com/roach88/mms/internal/condition"
	"github.com/roach88/mms/internal/engine"
	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/policy"
	"github.com/roach88/mms/internal/sparql"
	"github.com/roach88/mms/internal/txn"
)

// Lock purposes.
const (
	// PurposeHold marks a lock created explicitly by a caller.
	PurposeHold = "hold"

	// PurposeCommit marks the interim lock serializing commits to a branch.
	PurposeCommit = "commit"
)

// Executor runs transactions. Implemented by *engine.Executor.
type Executor interface {
	Execute(ctx context.Context, plan engine.Plan) (*engine.Result, error)
}

// TargetNotLocked requires that no lock with the bound ?_lockPurpose exists
// on the addressed commit.
var TargetNotLocked = condition.Require("targetNotLocked", mms.ReasonLockHeld,
	func(p *sparql.Pattern) {
		p.FilterNotExists(func(f *sparql.Pattern) {
			f.Graph("mor-graph:"+mms.GraphMetadata, func(g *sparql.Pattern) {
				g.Raw("?__mms_heldLock a mms:Lock ;\n    mms:commit morc: ;\n    mms:purpose ?_lockPurpose .")
			})
		})
	},
	func(prefixes *sparql.PrefixMap) string {
		return "Commit " + prefixes.Ref("morc:") + " is locked by a concurrent request. Re-read it and retry."
	})

// AcquireRequest describes a lock to create. Txn.Scope() must address the
// target commit and the lock id.
type AcquireRequest struct {
	Txn *txn.Context

	// Operation names the transaction. Default "AcquireLock".
	Operation string

	// Purpose distinguishes independent locks on the same commit.
	Purpose string

	// Conditions are the caller's guards, e.g. a CreateLock permit.
	Conditions condition.Group
}

// ReleaseRequest describes a lock to delete. Txn.Scope() must address it.
type ReleaseRequest struct {
	Txn *txn.Context

	// Operation names the transaction. Default "ReleaseLock".
	Operation string
}

// Manager acquires and releases locks.
//
// Thread-safety: Manager is safe for concurrent use.
type Manager struct {
	exec   Executor
	logger *slog.Logger
}

// NewManager creates a Manager. A nil logger means slog.Default().
func NewManager(exec Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{exec: exec, logger: logger}
}

// AcquireConditions returns the full guard of an acquire: the caller's
// conditions, then the per-target exclusion, then lock id uniqueness.
//
// Exclusion comes before uniqueness so a racing acquire of the same lock
// reports Conflict rather than AlreadyExists.
func AcquireConditions(caller condition.Group) condition.Group {
	return caller.Append(TargetNotLocked, condition.LockNotExists)
}

// ReleaseConditions is the guard of a release.
var ReleaseConditions = condition.LockCRUD.Append(
	condition.Permit(mms.PermissionDeleteLock, mms.ScopeLock),
	condition.LockExists,
)

// Acquire creates the lock. The acquirer receives an Admin grant on it in
// the same update so it can always release what it created.
//
// A lock already held on the target fails with Conflict(LockHeld).
func (m *Manager) Acquire(ctx context.Context, req AcquireRequest) (*engine.Result, error) {
	tx := req.Txn
	if tx.Scope().Lock == "" {
		return nil, mms.NewValidationError("lock id is required")
	}
	op := req.Operation
	if op == "" {
		op = "AcquireLock"
	}
	purpose := req.Purpose
	if purpose == "" {
		purpose = PurposeHold
	}

	conds := AcquireConditions(req.Conditions)
	update := engine.BuildUpdate(tx, conds, engine.Mutation{
		Insert: func(p *sparql.Pattern) {
			p.Graph("mor-graph:"+mms.GraphMetadata, func(g *sparql.Pattern) {
				g.Raw(lockTriples)
			})
			policy.Auto(tx, mms.ScopeLock, mms.RoleAdmin)(p)
		},
	})

	m.logger.Debug("acquiring lock", "lock", tx.IRI("morcl:"), "purpose", purpose)
	// A holder may release the lock before verify runs, so the audit node
	// alone decides.
	return m.exec.Execute(ctx, engine.Plan{
		Txn:        tx,
		Operation:  op,
		Conditions: conds,
		Update:     update,
		Params:     sparql.NewParams().Literal("lockPurpose", purpose),
		Construct:  constructLock,
		Where:      whereLock,
	})
}

// Release deletes every triple of the lock and the grants scoped to it.
//
// A missing lock fails with PreconditionFailed(NotFound); an actor without
// DeleteLock on the lock or an enclosing scope fails with PermissionDenied.
func (m *Manager) Release(ctx context.Context, req ReleaseRequest) (*engine.Result, error) {
	tx := req.Txn
	if tx.Scope().Lock == "" {
		return nil, mms.NewValidationError("lock id is required")
	}
	op := req.Operation
	if op == "" {
		op = "ReleaseLock"
	}

	update := engine.BuildUpdate(tx, ReleaseConditions, engine.Mutation{
		Delete: func(p *sparql.Pattern) {
			p.Graph("mor-graph:"+mms.GraphMetadata, func(g *sparql.Pattern) {
				g.Raw("morcl: ?__mms_lock_p ?__mms_lock_o .")
			})
			p.Graph("m-graph:"+mms.GraphPolicies, func(g *sparql.Pattern) {
				g.Raw("?__mms_lockPolicy ?__mms_lockPolicy_p ?__mms_lockPolicy_o .")
			})
		},
		Where: func(p *sparql.Pattern) {
			p.Graph("mor-graph:"+mms.GraphMetadata, func(g *sparql.Pattern) {
				g.Raw("morcl: ?__mms_lock_p ?__mms_lock_o .")
			})
			p.Optional(func(o *sparql.Pattern) {
				o.Graph("m-graph:"+mms.GraphPolicies, func(g *sparql.Pattern) {
					g.Raw("?__mms_lockPolicy mms:scope morcl: ;\n    ?__mms_lockPolicy_p ?__mms_lockPolicy_o .")
				})
			})
		},
	})

	m.logger.Debug("releasing lock", "lock", tx.IRI("morcl:"))
	// The same id may be acquired again before verify runs, so the audit
	// node alone decides.
	return m.exec.Execute(ctx, engine.Plan{
		Txn:        tx,
		Operation:  op,
		Conditions: ReleaseConditions,
		Update:     update,
		Construct:  constructLock,
		Where:      whereLock,
	})
}

const lockTriples = `morcl: a mms:Lock ;
    mms:id ?_lockId ;
    mms:commit morc: ;
    mms:purpose ?_lockPurpose ;
    mms:createdBy mu: ;
    mms:created ?_now .`

func constructLock(p *sparql.Pattern) {
	p.Raw("morcl: ?__mms_lock_p ?__mms_lock_o .")
	p.Raw("?__mms_lockPolicy ?__mms_lockPolicy_p ?__mms_lockPolicy_o .")
}

func whereLock(p *sparql.Pattern) {
	p.Graph("mor-graph:"+mms.GraphMetadata, func(g *sparql.Pattern) {
		g.Raw("morcl: ?__mms_lock_p ?__mms_lock_o .")
	})
	p.Optional(func(o *sparql.Pattern) {
		o.Graph("m-graph:"+mms.GraphPolicies, func(g *sparql.Pattern) {
			g.Raw("?__mms_lockPolicy mms:scope morcl: ;\n    ?__mms_lockPolicy_p ?__mms_lockPolicy_o .")
		})
	})
}
