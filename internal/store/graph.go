package store

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/knakk/rdf"
)

// Graph is an immutable set of triples returned by a CONSTRUCT query.
type Graph struct {
	triples []rdf.Triple
}

// NewGraph wraps triples.
func NewGraph(triples ...rdf.Triple) *Graph {
	return &Graph{triples: triples}
}

// ParseNTriples decodes an N-Triples document.
func ParseNTriples(r io.Reader) (*Graph, error) {
	triples, err := rdf.NewTripleDecoder(r, rdf.NTriples).DecodeAll()
	if err != nil {
		return nil, fmt.Errorf("parse n-triples: %w", err)
	}
	return &Graph{triples: triples}, nil
}

// ParseNTriplesString is ParseNTriples over a string.
func ParseNTriplesString(doc string) (*Graph, error) {
	return ParseNTriples(strings.NewReader(doc))
}

// Len returns the number of triples.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.triples)
}

// Triples returns a copy of the triples.
func (g *Graph) Triples() []rdf.Triple {
	if g == nil {
		return nil
	}
	return slices.Clone(g.triples)
}

// match compares a term's value to want. Empty want matches anything.
func match(t rdf.Term, want string) bool {
	return want == "" || t.String() == want
}

// Has reports whether a triple matches. Arguments are IRI strings or
// literal lexical values; "" is a wildcard.
func (g *Graph) Has(subject, predicate, object string) bool {
	if g == nil {
		return false
	}
	for _, t := range g.triples {
		if match(t.Subj, subject) && match(t.Pred, predicate) && match(t.Obj, object) {
			return true
		}
	}
	return false
}

// Objects returns the objects of triples matching subject and predicate.
func (g *Graph) Objects(subject, predicate string) []rdf.Object {
	var out []rdf.Object
	if g == nil {
		return out
	}
	for _, t := range g.triples {
		if match(t.Subj, subject) && match(t.Pred, predicate) {
			out = append(out, t.Obj)
		}
	}
	return out
}

// Object returns the value of the first object matching subject and
// predicate, and whether one was found.
func (g *Graph) Object(subject, predicate string) (string, bool) {
	objs := g.Objects(subject, predicate)
	if len(objs) == 0 {
		return "", false
	}
	return objs[0].String(), true
}

// Subjects returns the subjects of triples matching predicate and object.
func (g *Graph) Subjects(predicate, object string) []rdf.Subject {
	var out []rdf.Subject
	if g == nil {
		return out
	}
	for _, t := range g.triples {
		if match(t.Pred, predicate) && match(t.Obj, object) {
			out = append(out, t.Subj)
		}
	}
	return out
}

// Filter returns the triples for which keep returns true.
func (g *Graph) Filter(keep func(rdf.Triple) bool) *Graph {
	out := &Graph{}
	if g == nil {
		return out
	}
	for _, t := range g.triples {
		if keep(t) {
			out.triples = append(out.triples, t)
		}
	}
	return out
}

// WithoutSubjects returns the graph minus every triple whose subject is one
// of the given IRIs.
func (g *Graph) WithoutSubjects(subjects ...string) *Graph {
	return g.Filter(func(t rdf.Triple) bool {
		return !slices.Contains(subjects, t.Subj.String())
	})
}

// WriteNTriples encodes the graph as N-Triples, one statement per line,
// sorted so equal graphs serialize identically.
func (g *Graph) WriteNTriples(w io.Writer) error {
	triples := g.Triples()
	slices.SortFunc(triples, func(a, b rdf.Triple) int {
		return strings.Compare(key(a), key(b))
	})

	enc := rdf.NewTripleEncoder(w, rdf.NTriples)
	if err := enc.EncodeAll(triples); err != nil {
		return fmt.Errorf("encode n-triples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode n-triples: %w", err)
	}
	return nil
}

// String returns the sorted N-Triples serialization.
func (g *Graph) String() string {
	var b strings.Builder
	if err := g.WriteNTriples(&b); err != nil {
		return ""
	}
	return b.String()
}

func key(t rdf.Triple) string {
	return t.Subj.Serialize(rdf.NTriples) + " " + t.Pred.Serialize(rdf.NTriples) + " " + t.Obj.Serialize(rdf.NTriples)
}
