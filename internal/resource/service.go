// Package resource implements the operations of the versioning model:
// cluster bootstrap, orgs, repos, branches, commits and locks.
//
// Every operation resolves a transaction, composes its update from
// condition groups, builder fragments and auto grants, and hands the plan
// to the executor. Multi-step operations (commits) serialize through the
// lock manager.
package resource

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/mms/internal/engine"
	"github.com/roach88/mms/internal/lock"
	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/policy"
	"github.com/roach88/mms/internal/sparql"
	"github.com/roach88/mms/internal/store"
	"github.com/roach88/mms/internal/txn"
)

// DefaultBranch is the branch created with every repository unless
// configured otherwise.
const DefaultBranch = "master"

// Runner executes plans. Implemented by *engine.Executor.
type Runner interface {
	Execute(ctx context.Context, plan engine.Plan) (*engine.Result, error)
	Read(ctx context.Context, plan engine.ReadPlan) (*engine.Result, error)
}

// Config holds the identity of this deployment.
type Config struct {
	// RootIRI is the base of every minted IRI.
	RootIRI string

	// ServiceID is recorded on audit nodes.
	ServiceID string

	// DefaultBranch names the branch created with a repository.
	DefaultBranch string
}

// Request carries the caller identity and addressed scope of one call.
type Request struct {
	Actor string
	Scope mms.Scope
	HTTP  txn.Request
}

// Service implements the resource operations.
//
// Thread-safety: Service is safe for concurrent use.
type Service struct {
	exec   Runner
	locks  *lock.Manager
	cfg    Config
	ids    txn.IDGenerator
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithIDGenerator replaces the UUIDv7 transaction id generator.
func WithIDGenerator(g txn.IDGenerator) Option {
	return func(s *Service) {
		s.ids = g
	}
}

// WithClock replaces time.Now for transaction timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a Service.
func New(exec Runner, cfg Config, opts ...Option) *Service {
	if cfg.DefaultBranch == "" {
		cfg.DefaultBranch = DefaultBranch
	}
	s := &Service{
		exec:   exec,
		cfg:    cfg,
		ids:    txn.UUIDv7Generator{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.locks = lock.NewManager(exec, s.logger)
	return s
}

// begin validates the caller and the required scope levels and resolves
// the transaction.
func (s *Service) begin(req Request, message string, kinds ...mms.ScopeKind) (*txn.Context, error) {
	if err := mms.ValidateID("user id", req.Actor); err != nil {
		return nil, err
	}
	if err := req.Scope.Require(kinds...); err != nil {
		return nil, err
	}
	return txn.New(txn.Params{
		RootIRI:       s.cfg.RootIRI,
		ServiceID:     s.cfg.ServiceID,
		Actor:         req.Actor,
		Scope:         req.Scope,
		Request:       req.HTTP,
		CommitMessage: message,
		Now:           s.now(),
		IDs:           s.ids,
	}), nil
}

// view reconstructs resources in a verify or read query. Each part is one
// union branch so missing parts never suppress the others.
type view struct {
	parts []viewPart
}

type viewPart struct {
	template string
	graph    string
	pattern  string
}

// subject adds every triple of subject in graph. tag keeps variables
// distinct between parts.
func (v *view) subject(graph, subject, tag string) *view {
	t := subject + " ?__mms_" + tag + "_p ?__mms_" + tag + "_o ."
	v.parts = append(v.parts, viewPart{template: t, graph: graph, pattern: t})
	return v
}

// grants adds every policy scoped to the prefixed resource.
func (v *view) grants(scope, tag string) *view {
	s := "?__mms_" + tag + "_s"
	t := s + " ?__mms_" + tag + "_p ?__mms_" + tag + "_o ."
	v.parts = append(v.parts, viewPart{
		template: t,
		graph:    "m-graph:" + mms.GraphPolicies,
		pattern:  s + " mms:scope " + scope + " .\n" + t,
	})
	return v
}

func (v *view) construct(p *sparql.Pattern) {
	for _, part := range v.parts {
		p.Raw(part.template)
	}
}

func (v *view) where(p *sparql.Pattern) {
	branches := make([]*sparql.Pattern, len(v.parts))
	for i, part := range v.parts {
		branches[i] = sparql.Build(func(b *sparql.Pattern) {
			b.Graph(part.graph, func(g *sparql.Pattern) { g.Raw(part.pattern) })
		})
	}
	p.Union(branches...)
}

const (
	clusterGraph  = "m-graph:" + mms.GraphCluster
	metadataGraph = "mor-graph:" + mms.GraphMetadata
	adminRole     = mms.NamespaceMMSObject + "Role." + string(mms.RoleAdmin)
)

// snapshotGraph names the materialized model graph of a commit.
func snapshotGraph(commitID string) string {
	return "mor-graph:" + mms.GraphSnapshotPrefix + commitID
}

// hasAdminGrant reports whether g holds the auto grant tx created for the
// resource of kind.
func hasAdminGrant(g *store.Graph, tx *txn.Context, kind mms.ScopeKind) bool {
	return g.Has(tx.IRI(policy.IRI(tx, kind)), mms.PropRole, adminRole)
}

// commitIDOf strips the commit namespace from a commit IRI.
func commitIDOf(tx *txn.Context, iri string) string {
	return strings.TrimPrefix(iri, tx.IRI("mor-commit:"))
}
