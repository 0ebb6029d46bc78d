// Package harness runs YAML scenarios against a live resource service.
//
// A scenario is a sequence of resource operations performed by named
// actors, each with an expected outcome, followed by assertions over the
// store's graphs. Scenarios double as smoke tests for a deployment and as
// executable documentation of the access-control rules.
//
// # Scenario Format
//
//	name: lock_blocks_second_holder
//	description: "A commit can carry one lock per id"
//	setup:
//	  - op: bootstrap
//	    actor: alice
//	  - op: create_org
//	    actor: alice
//	    org: o
//	flow:
//	  - op: create_repo
//	    actor: alice
//	    org: o
//	    repo: r
//	    save: root
//	  - op: create_lock
//	    actor: bob
//	    org: o
//	    repo: r
//	    commit: $root
//	    lock: l1
//	    expect:
//	      outcome: PermissionDenied
//	assertions:
//	  - type: graph_empty
//	    graph: graphs/Transactions
//	  - type: graph_count
//	    graph: orgs/o/repos/r/graphs/Metadata
//	    pattern: "?s ?p ?o . filter(?o = <https://mms.openmbee.org/rdf/ontology/Lock>)"
//	    count: 0
//
// # Operations
//
// bootstrap, create_org, get_org, create_repo, get_repo, create_branch,
// get_branch, commit, read_graph, create_lock, get_lock and delete_lock.
// commit takes N-Triples delete and insert documents; create_repo reads
// its insert document as repo metadata.
//
// # Outcomes
//
// An expected outcome is "ok", a category ("PreconditionFailed") or a
// category and reason ("PreconditionFailed/AlreadyExists"). Setup steps
// must succeed. A step with "save: name" stores the commit id of its
// result; later steps reference it as "$name" in commit and from fields.
//
// # Assertions
//
// graph_empty and graph_count run a construct over one named graph. A
// graph_count pattern must bind ?s, ?p and ?o.
package harness
