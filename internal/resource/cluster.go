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

var bootstrapConditions = condition.NewGroup(condition.ClusterNotInitialized)

// Bootstrap seeds the role definitions and grants the actor Admin over the
// cluster. It succeeds once per store.
func (s *Service) Bootstrap(ctx context.Context, req Request) (*engine.Result, error) {
	req.Scope = mms.Scope{}
	tx, err := s.begin(req, "")
	if err != nil {
		return nil, err
	}

	v := (&view{}).
		subject("m-graph:"+mms.GraphDefinitions, mms.RoleAdmin.Prefixed(), "role").
		grants("m:", "grant")

	return s.exec.Execute(ctx, engine.Plan{
		Txn:        tx,
		Operation:  "Bootstrap",
		Conditions: bootstrapConditions,
		Update: engine.BuildUpdate(tx, bootstrapConditions, engine.Mutation{
			Insert: func(p *sparql.Pattern) {
				policy.Definitions(p)
				policy.Auto(tx, mms.ScopeCluster, mms.RoleAdmin)(p)
			},
		}),
		Construct: v.construct,
		Where:     v.where,
		Committed: func(g *store.Graph, tx *txn.Context) bool {
			return hasAdminGrant(g, tx, mms.ScopeCluster)
		},
	})
}
