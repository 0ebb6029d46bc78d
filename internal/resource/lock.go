package resource

import (
	"context"

	"github.com/roach88/mms/internal/condition"
	"github.com/roach88/mms/internal/engine"
	"github.com/roach88/mms/internal/lock"
	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/store"
	"github.com/roach88/mms/internal/txn"
)

var (
	createLockConditions = condition.LockCRUD.Append(
		condition.Permit(mms.PermissionCreateLock, mms.ScopeCommit),
	)

	readLockConditions = condition.LockCRUD.Append(
		condition.Permit(mms.PermissionReadLock, mms.ScopeLock),
		condition.LockExists,
	)
)

func lockScope(s mms.Scope) mms.Scope {
	return mms.Scope{Org: s.Org, Repo: s.Repo, Commit: s.Commit, Lock: s.Lock}
}

// CreateLock places an explicit lock on a commit.
func (s *Service) CreateLock(ctx context.Context, req Request) (*engine.Result, error) {
	req.Scope = lockScope(req.Scope)
	tx, err := s.begin(req, "", mms.ScopeOrg, mms.ScopeRepo, mms.ScopeCommit, mms.ScopeLock)
	if err != nil {
		return nil, err
	}
	return s.locks.Acquire(ctx, lock.AcquireRequest{
		Txn:        tx,
		Operation:  "CreateLock",
		Purpose:    lock.PurposeHold,
		Conditions: createLockConditions,
	})
}

// GetLock reads a lock and the grants scoped to it.
func (s *Service) GetLock(ctx context.Context, req Request) (*engine.Result, error) {
	req.Scope = lockScope(req.Scope)
	tx, err := s.begin(req, "", mms.ScopeOrg, mms.ScopeRepo, mms.ScopeCommit, mms.ScopeLock)
	if err != nil {
		return nil, err
	}

	v := (&view{}).subject(metadataGraph, "morcl:", "lock").grants("morcl:", "grant")
	return s.exec.Read(ctx, engine.ReadPlan{
		Txn:        tx,
		Operation:  "GetLock",
		Conditions: readLockConditions,
		Construct:  v.construct,
		Where:      v.where,
		Found: func(g *store.Graph, tx *txn.Context) bool {
			return g.Has(tx.IRI("morcl:"), mms.RDFType, mms.ClassLock)
		},
	})
}

// DeleteLock removes a lock, including one abandoned by an interrupted
// commit.
func (s *Service) DeleteLock(ctx context.Context, req Request) (*engine.Result, error) {
	req.Scope = lockScope(req.Scope)
	tx, err := s.begin(req, "", mms.ScopeOrg, mms.ScopeRepo, mms.ScopeCommit, mms.ScopeLock)
	if err != nil {
		return nil, err
	}
	return s.locks.Release(ctx, lock.ReleaseRequest{Txn: tx, Operation: "DeleteLock"})
}
