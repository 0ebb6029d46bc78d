package resource

import (
	"context"

	"github.com/roach88/mms/internal/condition"
	"github.com/roach88/mms/internal/engine"
	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/policy"
	"github.com/roach88/mms/internal/sparql"
	"github.com/roach88/mms/internal/store"
	"github.com/roach88/mms/internal/txn"
)

// BranchInput is the body of a branch creation. Commit names the commit the
// branch starts at; when empty, the branch starts at the current head of
// From, which defaults to the repository's default branch.
type BranchInput struct {
	Title  string `json:"title"`
	Commit string `json:"commit,omitempty"`
	From   string `json:"from,omitempty"`
}

var (
	createBranchConditions = condition.RepoCRUD.Append(
		condition.Permit(mms.PermissionCreateBranch, mms.ScopeRepo),
		condition.BranchNotExists,
		condition.CommitExists,
	)

	readBranchConditions = condition.BranchCRUD.Append(
		condition.Permit(mms.PermissionReadBranch, mms.ScopeBranch),
	)
)

const branchTriples = `morb: a mms:Branch ;
    mms:id ?_branchId ;
    dct:title ?_title ;
    mms:commit morc: ;
    mms:etag ?_transactionId ;
    mms:created ?_now ;
    mms:createdBy mu: .`

// CreateBranch creates a branch at a commit and grants the actor Admin
// over it.
func (s *Service) CreateBranch(ctx context.Context, req Request, in BranchInput) (*engine.Result, error) {
	scope := mms.Scope{Org: req.Scope.Org, Repo: req.Scope.Repo, Branch: req.Scope.Branch, Commit: in.Commit}
	if in.Commit == "" {
		from := in.From
		if from == "" {
			from = s.cfg.DefaultBranch
		}
		head, err := s.readHead(ctx, Request{
			Actor: req.Actor,
			Scope: mms.Scope{Org: scope.Org, Repo: scope.Repo, Branch: from},
			HTTP:  req.HTTP,
		}, mms.PermissionReadBranch)
		if err != nil {
			return nil, err
		}
		scope.Commit = head
	}

	req.Scope = scope
	tx, err := s.begin(req, "", mms.ScopeOrg, mms.ScopeRepo, mms.ScopeBranch, mms.ScopeCommit)
	if err != nil {
		return nil, err
	}

	v := (&view{}).subject(metadataGraph, "morb:", "branch").grants("morb:", "grant")
	return s.exec.Execute(ctx, engine.Plan{
		Txn:        tx,
		Operation:  "CreateBranch",
		Conditions: createBranchConditions,
		Update: engine.BuildUpdate(tx, createBranchConditions, engine.Mutation{
			Insert: func(p *sparql.Pattern) {
				p.Graph(metadataGraph, func(g *sparql.Pattern) { g.Raw(branchTriples) })
				policy.Auto(tx, mms.ScopeBranch, mms.RoleAdmin)(p)
			},
		}),
		Params:    sparql.NewParams().Literal("title", in.Title),
		Construct: v.construct,
		Where:     v.where,
		Committed: func(g *store.Graph, tx *txn.Context) bool {
			return g.Has(tx.IRI("morb:"), mms.RDFType, mms.ClassBranch) && hasAdminGrant(g, tx, mms.ScopeBranch)
		},
	})
}

// GetBranch reads a branch, including its head commit.
func (s *Service) GetBranch(ctx context.Context, req Request) (*engine.Result, error) {
	req.Scope = mms.Scope{Org: req.Scope.Org, Repo: req.Scope.Repo, Branch: req.Scope.Branch}
	tx, err := s.begin(req, "", mms.ScopeOrg, mms.ScopeRepo, mms.ScopeBranch)
	if err != nil {
		return nil, err
	}

	v := (&view{}).subject(metadataGraph, "morb:", "branch").grants("morb:", "grant")
	res, err := s.exec.Read(ctx, engine.ReadPlan{
		Txn:        tx,
		Operation:  "GetBranch",
		Conditions: readBranchConditions,
		Construct:  v.construct,
		Where:      v.where,
		Found:      hasHead,
	})
	if err != nil {
		return nil, err
	}
	head, _ := res.Graph.Object(tx.IRI("morb:"), mms.PropCommit)
	res.CommitID = commitIDOf(tx, head)
	return res, nil
}

// ReadBranchGraph returns the model graph of the branch's head commit. The
// result's CommitID names that commit.
func (s *Service) ReadBranchGraph(ctx context.Context, req Request) (*engine.Result, error) {
	req.Scope = mms.Scope{Org: req.Scope.Org, Repo: req.Scope.Repo, Branch: req.Scope.Branch}
	tx, err := s.begin(req, "", mms.ScopeOrg, mms.ScopeRepo, mms.ScopeBranch)
	if err != nil {
		return nil, err
	}

	res, err := s.exec.Read(ctx, engine.ReadPlan{
		Txn:        tx,
		Operation:  "ReadBranchGraph",
		Conditions: readBranchConditions,
		Construct: func(p *sparql.Pattern) {
			p.Raw("morb: mms:commit ?__mms_head .")
			p.Raw("?__mms_s ?__mms_p ?__mms_o .")
		},
		Where: func(p *sparql.Pattern) {
			p.Graph(metadataGraph, func(g *sparql.Pattern) {
				g.Raw("morb: mms:commit ?__mms_head .\n?__mms_head mms:graph ?__mms_snapshot .")
			})
			// An empty snapshot still yields the head.
			p.Optional(func(o *sparql.Pattern) {
				o.Raw("graph ?__mms_snapshot { ?__mms_s ?__mms_p ?__mms_o . }")
			})
		},
		Found: hasHead,
	})
	if err != nil {
		return nil, err
	}

	morb := tx.IRI("morb:")
	head, _ := res.Graph.Object(morb, mms.PropCommit)
	res.CommitID = commitIDOf(tx, head)
	res.Graph = res.Graph.WithoutSubjects(morb)
	return res, nil
}

// readHead returns the id of the branch's head commit after checking the
// actor holds perm on the branch.
func (s *Service) readHead(ctx context.Context, req Request, perm mms.Permission) (string, error) {
	tx, err := s.begin(req, "", mms.ScopeOrg, mms.ScopeRepo, mms.ScopeBranch)
	if err != nil {
		return "", err
	}
	res, err := s.exec.Read(ctx, engine.ReadPlan{
		Txn:        tx,
		Operation:  "ReadHead",
		Conditions: condition.BranchCRUD.Append(condition.Permit(perm, mms.ScopeBranch)),
		Construct:  func(p *sparql.Pattern) { p.Raw("morb: mms:commit ?__mms_head .") },
		Where: func(p *sparql.Pattern) {
			p.Graph(metadataGraph, func(g *sparql.Pattern) { g.Raw("morb: mms:commit ?__mms_head .") })
		},
		Found: hasHead,
	})
	if err != nil {
		return "", err
	}
	head, _ := res.Graph.Object(tx.IRI("morb:"), mms.PropCommit)
	return commitIDOf(tx, head), nil
}

func hasHead(g *store.Graph, tx *txn.Context) bool {
	return g.Has(tx.IRI("morb:"), mms.PropCommit, "")
}
