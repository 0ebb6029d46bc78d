// Package txn resolves the identity of one request: its transaction id, the
// commit id it writes or targets, and the deterministic prefix map naming
// every resource in its scope.
//
// Two requests addressing the same org/repo/branch/commit produce identical
// IRIs for those resources. Only the transaction node (mt:) and the commit
// id of a new commit depend on the fresh transaction id.
package txn

import (
	"strings"
	"time"

	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/sparql"
)

// Request is the HTTP metadata recorded on the audit node.
type Request struct {
	Path        string
	Method      string
	Body        string
	ContentType string
}

// Params are the inputs of a transaction. Scope ids are assumed valid.
type Params struct {
	// RootIRI is the base under which every resource IRI is minted.
	RootIRI string

	// ServiceID identifies this service instance on audit nodes.
	ServiceID string

	// Actor is the authenticated user id.
	Actor string

	// Scope holds the addressed resource ids. A non-empty Scope.Commit is
	// reused as the commit id.
	Scope mms.Scope

	Request Request

	// CommitMessage is bound to ?_commitMessage when non-empty.
	CommitMessage string

	// Now is the transaction timestamp. Zero means time.Now().
	Now time.Time

	// IDs generates transaction ids. Nil means UUIDv7Generator.
	IDs IDGenerator
}

// Context is the per-request transaction state. It owns the clause counter
// shared by every update builder contributing to this transaction.
//
// A Context is not safe for concurrent use.
type Context struct {
	params   Params
	id       string
	commitID string
	clauses  *sparql.Clauses
	prefixes *sparql.PrefixMap
}

// New resolves a transaction.
func New(p Params) *Context {
	if p.IDs == nil {
		p.IDs = UUIDv7Generator{}
	}
	if p.Now.IsZero() {
		p.Now = time.Now()
	}
	p.RootIRI = strings.TrimSuffix(p.RootIRI, "/")

	id := p.IDs.Generate()
	commitID := p.Scope.Commit
	if commitID == "" {
		commitID = id
	}
	c := &Context{
		params:   p,
		id:       id,
		commitID: commitID,
		clauses:  &sparql.Clauses{},
	}
	c.prefixes = c.resolvePrefixes()
	return c
}

// Fork starts a sibling transaction for the same request addressing scope.
// It gets a fresh transaction id and clause counter. The commit id is
// scope.Commit when set, otherwise the parent's commit id.
func (c *Context) Fork(scope mms.Scope) *Context {
	p := c.params
	p.Scope = scope
	if p.Scope.Commit == "" {
		p.Scope.Commit = c.commitID
	}
	return New(p)
}

// ID returns the transaction id.
func (c *Context) ID() string { return c.id }

// CommitID returns the commit id this transaction writes or targets.
func (c *Context) CommitID() string { return c.commitID }

// Actor returns the acting user id.
func (c *Context) Actor() string { return c.params.Actor }

// Scope returns the addressed scope.
func (c *Context) Scope() mms.Scope { return c.params.Scope }

// Now returns the transaction timestamp.
func (c *Context) Now() time.Time { return c.params.Now }

// Request returns the recorded request metadata.
func (c *Context) Request() Request { return c.params.Request }

// Clauses returns the shared operation counter.
func (c *Context) Clauses() *sparql.Clauses { return c.clauses }

// Prefixes returns the resolved prefix map.
func (c *Context) Prefixes() *sparql.PrefixMap { return c.prefixes }

// Update returns a builder counting operations on this transaction.
func (c *Context) Update() *sparql.UpdateBuilder {
	return sparql.NewUpdate(c.clauses)
}

// IRI expands a prefixed name against this transaction's prefixes.
func (c *Context) IRI(prefixed string) string {
	return c.prefixes.Expand(prefixed)
}

// Params returns the parameters every transaction binds.
func (c *Context) Params() *sparql.Params {
	s := c.params.Scope
	r := c.params.Request
	p := sparql.NewParams().
		Literal("transactionId", c.id).
		Literal("commitId", c.commitID).
		Literal("userId", c.params.Actor).
		Literal("serviceId", c.params.ServiceID).
		Literal("requestPath", r.Path).
		Literal("requestMethod", r.Method).
		Literal("requestBody", r.Body).
		Literal("requestBodyContentType", r.ContentType).
		Time("now", c.params.Now)

	for name, value := range map[string]string{
		"orgId":         s.Org,
		"repoId":        s.Repo,
		"branchId":      s.Branch,
		"lockId":        s.Lock,
		"commitMessage": c.params.CommitMessage,
	} {
		if value != "" {
			p.Literal(name, value)
		}
	}
	return p
}

// Render finalizes body for this transaction: prefix declarations plus
// substitution of the standard parameters and extra.
func (c *Context) Render(body string, extra *sparql.Params) (string, error) {
	return sparql.Render(c.prefixes, body, c.Params().Merge(extra))
}

// Audit writes this transaction's audit node into p. The node lives in the
// shared m-graph:Transactions graph and is deleted by cleanup.
func (c *Context) Audit(p *sparql.Pattern) {
	s := c.params.Scope
	lines := []string{
		"mt: a mms:Transaction ;",
		"    mms:created ?_now ;",
		"    mms:serviceId ?_serviceId ;",
		"    mms:requestPath ?_requestPath ;",
		"    mms:requestMethod ?_requestMethod ;",
		"    mms:requestBody ?_requestBody ;",
		"    mms:requestBodyContentType ?_requestBodyContentType ;",
	}
	if s.Org != "" {
		lines = append(lines, "    mms:org mo: ;")
	}
	if s.Repo != "" {
		lines = append(lines, "    mms:repo mor: ;")
	}
	if s.Branch != "" {
		lines = append(lines, "    mms:branch morb: ;")
	}
	lines = append(lines, "    mms:user mu: .")

	p.Graph("m-graph:"+mms.GraphTransaction, func(g *sparql.Pattern) {
		g.Raw(strings.Join(lines, "\n"))
	})
}

func (c *Context) resolvePrefixes() *sparql.PrefixMap {
	root := c.params.RootIRI
	s := c.params.Scope

	m := sparql.NewPrefixMap().
		Add("rdf", mms.NamespaceRDF).
		Add("xsd", mms.NamespaceXSD).
		Add("dct", mms.NamespaceDCT).
		Add("mms", mms.NamespaceMMS).
		Add("mms-object", mms.NamespaceMMSObject).
		Add("m", root+"/").
		Add("m-graph", root+"/graphs/").
		Add("m-policy", root+"/policies/").
		Add("m-user", root+"/users/").
		Add("m-org", root+"/orgs/").
		Add("mu", root+"/users/"+c.params.Actor)

	if s.Org != "" {
		mo := root + "/orgs/" + s.Org
		m.Add("mo", mo)

		if s.Repo != "" {
			mor := mo + "/repos/" + s.Repo
			m.Add("mor", mor).
				Add("mor-graph", mor+"/graphs/").
				Add("mor-commit", mor+"/commits/").
				Add("mor-branch", mor+"/branches/").
				Add("morc", mor+"/commits/"+c.commitID).
				Add("morc-lock", mor+"/commits/"+c.commitID+"/locks/")
			if s.Branch != "" {
				m.Add("morb", mor+"/branches/"+s.Branch)
			}
			if s.Lock != "" {
				m.Add("morcl", mor+"/commits/"+c.commitID+"/locks/"+s.Lock)
			}
		}
	}
	return m.Add("mt", root+"/transactions/"+c.id)
}
