package resource

import (
	"context"
	"strings"

	"github.com/knakk/rdf"

	"github.com/roach88/mms/internal/condition"
	"github.com/roach88/mms/internal/engine"
	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/policy"
	"github.com/roach88/mms/internal/sparql"
	"github.com/roach88/mms/internal/store"
	"github.com/roach88/mms/internal/txn"
)

// RepoInput is the body of a repo creation. Metadata holds extra
// statements about the repo itself; every subject must be the repo IRI and
// no predicate may be one the service manages.
type RepoInput struct {
	Title    string       `json:"title"`
	Metadata []rdf.Triple `json:"-"`
}

var (
	createRepoConditions = condition.OrgCRUD.Append(
		condition.Permit(mms.PermissionCreateRepo, mms.ScopeOrg),
		condition.RepoNotExists,
		condition.RepoMetadataGraphEmpty,
	)

	readRepoConditions = condition.RepoCRUD.Append(
		condition.Permit(mms.PermissionReadRepo, mms.ScopeRepo),
	)
)

const repoTriples = `mor: a mms:Repo ;
    mms:id ?_repoId ;
    mms:org mo: ;
    dct:title ?_title ;
    mms:etag ?_transactionId ;
    mms:created ?_now ;
    mms:createdBy mu: .`

// CreateRepo creates a repo together with its root commit, the default
// branch pointing at it and an Admin grant for the actor, all in one
// update. The root commit's snapshot is empty.
func (s *Service) CreateRepo(ctx context.Context, req Request, in RepoInput) (*engine.Result, error) {
	req.Scope = mms.Scope{Org: req.Scope.Org, Repo: req.Scope.Repo}
	tx, err := s.begin(req, "", mms.ScopeOrg, mms.ScopeRepo)
	if err != nil {
		return nil, err
	}
	branch := "mor-branch:" + s.cfg.DefaultBranch
	metadata, err := repoMetadata(tx.IRI("mor:"), in.Metadata)
	if err != nil {
		return nil, err
	}

	v := (&view{}).
		subject(clusterGraph, "mor:", "repo").
		subject(metadataGraph, "morc:", "commit").
		subject(metadataGraph, branch, "branch").
		grants("mor:", "grant")

	return s.exec.Execute(ctx, engine.Plan{
		Txn:        tx,
		Operation:  "CreateRepo",
		Conditions: createRepoConditions,
		Update: engine.BuildUpdate(tx, createRepoConditions, engine.Mutation{
			Insert: func(p *sparql.Pattern) {
				p.Graph(clusterGraph, func(g *sparql.Pattern) { g.Raw(repoTriples).Raw(metadata) })
				p.Graph(metadataGraph, func(g *sparql.Pattern) {
					g.Rawf(`morc: a mms:Commit ;
    mms:parent rdf:nil ;
    mms:graph %s ;
    mms:message "Initial commit" ;
    mms:created ?_now ;
    mms:createdBy mu: .`, snapshotGraph(tx.CommitID()))
					g.Rawf(`%s a mms:Branch ;
    mms:id ?_defaultBranchId ;
    dct:title ?_defaultBranchId ;
    mms:commit morc: ;
    mms:created ?_now ;
    mms:createdBy mu: .`, branch)
				})
				policy.Auto(tx, mms.ScopeRepo, mms.RoleAdmin)(p)
			},
		}),
		Params: sparql.NewParams().
			Literal("title", in.Title).
			Literal("defaultBranchId", s.cfg.DefaultBranch),
		Construct: v.construct,
		Where:     v.where,
		Committed: func(g *store.Graph, tx *txn.Context) bool {
			return g.Has(tx.IRI("mor:"), mms.RDFType, mms.ClassRepo) &&
				g.Has(tx.IRI("morc:"), mms.RDFType, mms.ClassCommit) &&
				g.Has(tx.IRI(branch), mms.RDFType, mms.ClassBranch) &&
				hasAdminGrant(g, tx, mms.ScopeRepo)
		},
	})
}

// GetRepo reads a repo and the grants scoped to it.
func (s *Service) GetRepo(ctx context.Context, req Request) (*engine.Result, error) {
	req.Scope = mms.Scope{Org: req.Scope.Org, Repo: req.Scope.Repo}
	tx, err := s.begin(req, "", mms.ScopeOrg, mms.ScopeRepo)
	if err != nil {
		return nil, err
	}

	v := (&view{}).subject(clusterGraph, "mor:", "repo").grants("mor:", "grant")
	return s.exec.Read(ctx, engine.ReadPlan{
		Txn:        tx,
		Operation:  "GetRepo",
		Conditions: readRepoConditions,
		Construct:  v.construct,
		Where:      v.where,
		Found: func(g *store.Graph, tx *txn.Context) bool {
			return g.Has(tx.IRI("mor:"), mms.RDFType, mms.ClassRepo)
		},
	})
}

// repoMetadata renders caller statements about the repo, rejecting any
// other subject and any predicate the service writes itself.
func repoMetadata(repoIRI string, triples []rdf.Triple) (string, error) {
	for _, t := range triples {
		if iri, ok := t.Subj.(rdf.IRI); !ok || iri.String() != repoIRI {
			return "", mms.NewValidationError("repo metadata may only describe <%s>, not %v", repoIRI, t.Subj)
		}
		pred := t.Pred.String()
		if pred == mms.RDFType || strings.HasPrefix(pred, mms.NamespaceMMS) {
			return "", mms.NewValidationError("repo metadata may not set <%s>", pred)
		}
	}
	return sparql.FormatTriples(triples)
}
