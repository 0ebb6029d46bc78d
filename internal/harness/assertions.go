package harness

import (
	"context"
	"fmt"
	"strings"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Graph    string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %s on <%s> failed: expected %s, got %s", e.Type, e.Graph, e.Expected, e.Actual)
}

// EvaluateAssertions runs all assertions and returns their error messages.
// Empty slice means all assertions passed.
func EvaluateAssertions(ctx context.Context, target Target, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(ctx, target, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(ctx context.Context, target Target, a Assertion) error {
	graph := GraphIRI(target.RootIRI, a.Graph)
	pattern := a.Pattern
	if pattern == "" {
		pattern = "?s ?p ?o"
	}

	g, err := target.Store.Construct(ctx, CountQuery(graph, pattern))
	if err != nil {
		return fmt.Errorf("query <%s>: %w", graph, err)
	}

	want := a.Count
	if a.Type == AssertGraphEmpty {
		want = 0
	}
	if g.Len() != want {
		return &AssertionError{
			Type:     a.Type,
			Graph:    graph,
			Expected: fmt.Sprintf("%d statements", want),
			Actual:   fmt.Sprintf("%d", g.Len()),
		}
	}
	return nil
}

// GraphIRI joins a root-relative graph path onto the root IRI.
func GraphIRI(root, rel string) string {
	return strings.TrimSuffix(root, "/") + "/" + strings.TrimPrefix(rel, "/")
}

// CountQuery builds the construct that returns the statements matching
// pattern inside graph.
func CountQuery(graph, pattern string) string {
	return fmt.Sprintf("construct { ?s ?p ?o } where { graph <%s> { %s } }", graph, pattern)
}
