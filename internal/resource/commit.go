package resource

import (
	"context"

	"github.com/knakk/rdf"

	"github.com/roach88/mms/internal/condition"
	"github.com/roach88/mms/internal/engine"
	"github.com/roach88/mms/internal/lock"
	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/sparql"
	"github.com/roach88/mms/internal/store"
	"github.com/roach88/mms/internal/txn"
)

// CommitInput is a model change to a branch. Delete is removed from the
// head snapshot, then Insert is added.
type CommitInput struct {
	Message string
	Delete  []rdf.Triple
	Insert  []rdf.Triple
}

// HeadUnchanged requires the branch to still point at the commit bound to
// ?_head.
var HeadUnchanged = condition.Require("headUnchanged", mms.ReasonStaleReference,
	func(p *sparql.Pattern) {
		p.Graph(metadataGraph, func(g *sparql.Pattern) {
			g.Raw("morb: mms:commit ?_head .")
		})
	},
	func(prefixes *sparql.PrefixMap) string {
		return "Branch " + prefixes.Ref("morb:") + " no longer points at the commit this change was based on."
	})

var commitConditions = condition.BranchCRUD.Append(
	condition.Permit(mms.PermissionUpdateBranch, mms.ScopeBranch),
	HeadUnchanged,
)

// interimLockGroup guards the interim lock on the branch head.
var interimLockGroup = condition.CommitCRUD.Append(
	condition.Permit(mms.PermissionUpdateBranch, mms.ScopeBranch),
)

// Commit applies a patch to the head of a branch, producing a new commit
// whose snapshot is the head's snapshot with the patch applied.
//
// Commits to one branch are serialized by an interim lock on the head
// commit. A concurrent commit fails with Conflict(LockHeld); a branch moved
// since the head was read fails with PreconditionFailed(StaleReference).
// The interim lock is released whatever the outcome.
func (s *Service) Commit(ctx context.Context, req Request, in CommitInput) (*engine.Result, error) {
	req.Scope = mms.Scope{Org: req.Scope.Org, Repo: req.Scope.Repo, Branch: req.Scope.Branch}
	tx, err := s.begin(req, in.Message, mms.ScopeOrg, mms.ScopeRepo, mms.ScopeBranch)
	if err != nil {
		return nil, err
	}
	deletes, err := sparql.FormatTriples(in.Delete)
	if err != nil {
		return nil, err
	}
	inserts, err := sparql.FormatTriples(in.Insert)
	if err != nil {
		return nil, err
	}

	head, err := s.readHead(ctx, req, mms.PermissionUpdateBranch)
	if err != nil {
		return nil, err
	}

	interim := tx.Fork(mms.Scope{
		Org:    req.Scope.Org,
		Repo:   req.Scope.Repo,
		Branch: req.Scope.Branch,
		Commit: head,
		Lock:   "interim." + tx.ID(),
	})
	if _, err := s.locks.Acquire(ctx, lock.AcquireRequest{
		Txn:        interim,
		Operation:  "AcquireInterimLock",
		Purpose:    lock.PurposeCommit,
		Conditions: interimLockGroup,
	}); err != nil {
		return nil, err
	}
	defer s.releaseInterim(ctx, interim)

	headIRI := tx.IRI("mor-commit:" + head)
	return s.exec.Execute(ctx, engine.Plan{
		Txn:        tx,
		Operation:  "Commit",
		Conditions: commitConditions,
		Update:     commitUpdate(tx, deletes, inserts),
		Params:     sparql.NewParams().IRI("head", headIRI),
		Construct: func(p *sparql.Pattern) {
			p.Raw("morb: mms:commit ?__mms_branchHead .")
			p.Raw("morc: ?__mms_commit_p ?__mms_commit_o .")
		},
		Where: func(p *sparql.Pattern) {
			p.Union(
				sparql.Build(func(b *sparql.Pattern) {
					b.Graph(metadataGraph, func(g *sparql.Pattern) { g.Raw("morb: mms:commit ?__mms_branchHead .") })
				}),
				sparql.Build(func(b *sparql.Pattern) {
					b.Graph(metadataGraph, func(g *sparql.Pattern) { g.Raw("morc: ?__mms_commit_p ?__mms_commit_o .") })
				}),
			)
		},
		// The branch may already have moved on by verify time, so only the
		// commit node decides.
		Committed: func(g *store.Graph, tx *txn.Context) bool {
			return g.Has(tx.IRI("morc:"), mms.RDFType, mms.ClassCommit) &&
				g.Has(tx.IRI("morc:"), mms.PropParent, headIRI)
		},
	})
}

// commitUpdate renders the four operations of a commit on tx's shared
// clause counter. The first moves the branch and writes the commit and
// audit node under the guards. The others build the new snapshot and are
// gated on the audit node, so they act only if the first one did.
func commitUpdate(tx *txn.Context, deletes, inserts string) string {
	pointer := engine.BuildUpdate(tx, commitConditions, engine.Mutation{
		Delete: func(p *sparql.Pattern) {
			p.Graph(metadataGraph, func(g *sparql.Pattern) { g.Raw("morb: mms:commit ?_head .") })
		},
		Insert: func(p *sparql.Pattern) {
			p.Graph(metadataGraph, func(g *sparql.Pattern) {
				g.Rawf(`morc: a mms:Commit ;
    mms:parent ?_head ;
    mms:graph %s ;
    mms:message ?_commitMessage ;
    mms:created ?_now ;
    mms:createdBy mu: .
morb: mms:commit morc: .`, snapshotGraph(tx.CommitID()))
			})
		},
	})

	snapshot := snapshotGraph(tx.CommitID())
	committed := func(p *sparql.Pattern) {
		p.Graph("m-graph:"+mms.GraphTransaction, func(g *sparql.Pattern) { g.Raw("mt: a mms:Transaction .") })
	}

	model := tx.Update()
	model.Insert(func(p *sparql.Pattern) {
		p.Graph(snapshot, func(g *sparql.Pattern) { g.Raw("?__mms_s ?__mms_p ?__mms_o .") })
	}).Where(func(p *sparql.Pattern) {
		committed(p)
		p.Graph(metadataGraph, func(g *sparql.Pattern) { g.Raw("?_head mms:graph ?__mms_parentSnapshot .") })
		p.Raw("graph ?__mms_parentSnapshot { ?__mms_s ?__mms_p ?__mms_o . }")
	})
	if deletes != "" {
		model.Delete(func(p *sparql.Pattern) {
			p.Graph(snapshot, func(g *sparql.Pattern) { g.Raw(deletes) })
		}).Where(committed)
	}
	if inserts != "" {
		model.Insert(func(p *sparql.Pattern) {
			p.Graph(snapshot, func(g *sparql.Pattern) { g.Raw(inserts) })
		}).Where(committed)
	}
	return pointer + "\n" + model.String()
}

// releaseInterim frees the interim lock even if the caller has gone away.
func (s *Service) releaseInterim(ctx context.Context, interim *txn.Context) {
	rtx := interim.Fork(interim.Scope())
	if _, err := s.locks.Release(context.WithoutCancel(ctx), lock.ReleaseRequest{
		Txn:       rtx,
		Operation: "ReleaseInterimLock",
	}); err != nil {
		s.logger.Warn("interim lock release failed",
			"lock", rtx.IRI("morcl:"),
			"error", err,
		)
	}
}
