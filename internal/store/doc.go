// Package store is the only I/O boundary to the backing RDF graph store.
//
// The Store interface exposes exactly two capabilities: submit one SPARQL
// update, and run one CONSTRUCT query returning a Graph. HTTPStore speaks
// the SPARQL 1.1 Protocol to an endpoint such as Apache Jena Fuseki.
//
// # Fault model
//
//   - Any non-2xx response or transport error is returned as an error; the
//     engine classifies it as a StoreFault and never shows it to a caller
//   - A 2xx update response says nothing about whether the update had an
//     effect (a WHERE clause matching nothing is still a success)
//   - Responses to CONSTRUCT are parsed as N-Triples
//
// Nothing here caches graph state between calls.
package store
