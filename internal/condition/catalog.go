package condition

import (
	"fmt"

	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/sparql"
)

// exists builds a pattern asserting that subject has type class in graph.
func exists(graph, subject, class string) func(*sparql.Pattern) {
	return func(p *sparql.Pattern) {
		p.Graph(graph, func(g *sparql.Pattern) {
			g.Rawf("%s a %s .", subject, class)
		})
	}
}

// absent builds the negation of exists.
func absent(graph, subject, class string) func(*sparql.Pattern) {
	return func(p *sparql.Pattern) {
		p.FilterNotExists(exists(graph, subject, class))
	}
}

func refMessage(format, prefixed string) MessageFunc {
	return func(prefixes *sparql.PrefixMap) string {
		return fmt.Sprintf(format, prefixes.Ref(prefixed))
	}
}

const (
	clusterGraph  = "m-graph:" + mms.GraphCluster
	metadataGraph = "mor-graph:" + mms.GraphMetadata
)

// ClusterInitialized requires role definitions to be seeded.
var ClusterInitialized = Require("clusterInitialized", mms.ReasonNotFound,
	func(p *sparql.Pattern) {
		p.FilterExists(func(f *sparql.Pattern) {
			f.Graph("m-graph:"+mms.GraphDefinitions, func(g *sparql.Pattern) {
				g.Raw(mms.RoleAdmin.Prefixed() + " mms:permits ?__mms_anyPermission .")
			})
		})
	},
	func(*sparql.PrefixMap) string {
		return "The cluster has not been initialized."
	})

// ClusterNotInitialized is the negation of ClusterInitialized.
var ClusterNotInitialized = Require("clusterNotInitialized", mms.ReasonAlreadyExists,
	func(p *sparql.Pattern) {
		p.FilterNotExists(func(f *sparql.Pattern) {
			f.Graph("m-graph:"+mms.GraphDefinitions, func(g *sparql.Pattern) {
				g.Raw(mms.RoleAdmin.Prefixed() + " mms:permits ?__mms_anyPermission .")
			})
		})
	},
	func(*sparql.PrefixMap) string {
		return "The cluster has already been initialized."
	})

var (
	OrgExists = Require("orgExists", mms.ReasonNotFound,
		exists(clusterGraph, "mo:", "mms:Org"),
		refMessage("Org %s does not exist.", "mo:"))

	OrgNotExists = Require("orgNotExists", mms.ReasonAlreadyExists,
		absent(clusterGraph, "mo:", "mms:Org"),
		refMessage("The provided org %s already exists.", "mo:"))

	RepoExists = Require("repoExists", mms.ReasonNotFound,
		exists(clusterGraph, "mor:", "mms:Repo"),
		refMessage("Repo %s does not exist.", "mor:"))

	RepoNotExists = Require("repoNotExists", mms.ReasonAlreadyExists,
		absent(clusterGraph, "mor:", "mms:Repo"),
		refMessage("The provided repo %s already exists.", "mor:"))

	RepoMetadataGraphEmpty = Require("repoMetadataGraphEmpty", mms.ReasonNotEmpty,
		func(p *sparql.Pattern) {
			p.FilterNotExists(func(f *sparql.Pattern) {
				f.Graph(metadataGraph, func(g *sparql.Pattern) {
					g.Raw("?__mms_metaS ?__mms_metaP ?__mms_metaO .")
				})
			})
		},
		refMessage("The Metadata graph %s is not empty.", metadataGraph))

	BranchExists = Require("branchExists", mms.ReasonNotFound,
		exists(metadataGraph, "morb:", "mms:Branch"),
		refMessage("Branch %s does not exist.", "morb:"))

	BranchNotExists = Require("branchNotExists", mms.ReasonAlreadyExists,
		absent(metadataGraph, "morb:", "mms:Branch"),
		refMessage("The provided branch %s already exists.", "morb:"))

	CommitExists = Require("commitExists", mms.ReasonNotFound,
		exists(metadataGraph, "morc:", "mms:Commit"),
		refMessage("Commit %s does not exist.", "morc:"))

	LockExists = Require("lockExists", mms.ReasonNotFound,
		exists(metadataGraph, "morcl:", "mms:Lock"),
		refMessage("Lock %s does not exist.", "morcl:"))

	LockNotExists = Require("lockNotExists", mms.ReasonAlreadyExists,
		absent(metadataGraph, "morcl:", "mms:Lock"),
		refMessage("The provided lock %s already exists.", "morcl:"))
)

// Predefined bases. Each level requires everything its parent does.
var (
	ClusterCRUD = NewGroup(ClusterInitialized)
	OrgCRUD     = ClusterCRUD.Append(OrgExists)
	RepoCRUD    = OrgCRUD.Append(RepoExists)
	BranchCRUD  = RepoCRUD.Append(BranchExists)
	CommitCRUD  = RepoCRUD.Append(CommitExists)
	LockCRUD    = CommitCRUD
)
