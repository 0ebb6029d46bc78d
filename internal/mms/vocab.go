package mms

// Ontology namespaces.
const (
	NamespaceRDF       = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NamespaceXSD       = "http://www.w3.org/2001/XMLSchema#"
	NamespaceDCT       = "http://purl.org/dc/terms/"
	NamespaceMMS       = "https://mms.openmbee.org/rdf/ontology/"
	NamespaceMMSObject = "https://mms.openmbee.org/rdf/objects/"
)

// Frequently compared IRIs.
const (
	RDFType = NamespaceRDF + "type"
	RDFNil  = NamespaceRDF + "nil"

	XSDDateTime = NamespaceXSD + "dateTime"

	ClassTransaction = NamespaceMMS + "Transaction"
	ClassOrg         = NamespaceMMS + "Org"
	ClassRepo        = NamespaceMMS + "Repo"
	ClassBranch      = NamespaceMMS + "Branch"
	ClassCommit      = NamespaceMMS + "Commit"
	ClassLock        = NamespaceMMS + "Lock"
	ClassPolicy      = NamespaceMMS + "Policy"

	PropCommit  = NamespaceMMS + "commit"
	PropParent  = NamespaceMMS + "parent"
	PropGraph   = NamespaceMMS + "graph"
	PropScope   = NamespaceMMS + "scope"
	PropSubject = NamespaceMMS + "subject"
	PropRole    = NamespaceMMS + "role"
	PropPurpose = NamespaceMMS + "purpose"
)

// Diagnostic triples emitted by inspect patterns. Each passing condition
// yields <InspectSubject> <InspectPass> "conditionKey".
const (
	InspectSubject = "urn:mms:inspect"
	InspectPass    = "urn:mms:pass"
)

// Well-known named graphs, relative to the m-graph: prefix.
const (
	GraphCluster     = "Cluster"
	GraphPolicies    = "AccessControl.Policies"
	GraphDefinitions = "AccessControl.Definitions"
	GraphTransaction = "Transactions"
)

// Well-known named graphs, relative to the mor-graph: prefix.
const (
	GraphMetadata       = "Metadata"
	GraphSnapshotPrefix = "Snapshot."
)

// Resource properties checked outside query text.
const (
	PropID        = NamespaceMMS + "id"
	PropMessage   = NamespaceMMS + "message"
	PropCreatedBy = NamespaceMMS + "createdBy"
	PropTitle     = NamespaceDCT + "title"
)
