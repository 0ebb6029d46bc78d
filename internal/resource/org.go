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

// OrgInput is the body of an org creation.
type OrgInput struct {
	Title string `json:"title"`
}

var (
	createOrgConditions = condition.ClusterCRUD.Append(
		condition.Permit(mms.PermissionCreateOrg, mms.ScopeCluster),
		condition.OrgNotExists,
	)

	readOrgConditions = condition.OrgCRUD.Append(
		condition.Permit(mms.PermissionReadOrg, mms.ScopeOrg),
	)
)

const orgTriples = `mo: a mms:Org ;
    mms:id ?_orgId ;
    dct:title ?_title ;
    mms:etag ?_transactionId ;
    mms:created ?_now ;
    mms:createdBy mu: .`

func orgView() *view {
	return (&view{}).subject(clusterGraph, "mo:", "org").grants("mo:", "grant")
}

// CreateOrg creates an org and grants the actor Admin over it.
func (s *Service) CreateOrg(ctx context.Context, req Request, in OrgInput) (*engine.Result, error) {
	tx, err := s.begin(req, "", mms.ScopeOrg)
	if err != nil {
		return nil, err
	}

	v := orgView()
	return s.exec.Execute(ctx, engine.Plan{
		Txn:        tx,
		Operation:  "CreateOrg",
		Conditions: createOrgConditions,
		Update: engine.BuildUpdate(tx, createOrgConditions, engine.Mutation{
			Insert: func(p *sparql.Pattern) {
				p.Graph(clusterGraph, func(g *sparql.Pattern) { g.Raw(orgTriples) })
				policy.Auto(tx, mms.ScopeOrg, mms.RoleAdmin)(p)
			},
		}),
		Params:    sparql.NewParams().Literal("title", in.Title),
		Construct: v.construct,
		Where:     v.where,
		Committed: func(g *store.Graph, tx *txn.Context) bool {
			return g.Has(tx.IRI("mo:"), mms.RDFType, mms.ClassOrg) && hasAdminGrant(g, tx, mms.ScopeOrg)
		},
	})
}

// GetOrg reads an org and the grants scoped to it.
func (s *Service) GetOrg(ctx context.Context, req Request) (*engine.Result, error) {
	tx, err := s.begin(req, "", mms.ScopeOrg)
	if err != nil {
		return nil, err
	}

	v := orgView()
	return s.exec.Read(ctx, engine.ReadPlan{
		Txn:        tx,
		Operation:  "GetOrg",
		Conditions: readOrgConditions,
		Construct:  v.construct,
		Where:      v.where,
		Found: func(g *store.Graph, tx *txn.Context) bool {
			return g.Has(tx.IRI("mo:"), mms.RDFType, mms.ClassOrg)
		},
	})
}
