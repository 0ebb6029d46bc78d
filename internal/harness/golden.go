package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// FormatTrace renders a trace one step per line. Result sizes are left out
// since they depend on the store's audit details.
func FormatTrace(name string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario %s\n", name)
	for _, rec := range result.Trace {
		fmt.Fprintf(&b, "%s[%d] %s by %s on %s -> %s\n", rec.Section, rec.Index, rec.Op, rec.Actor, rec.Scope, rec.Outcome)
	}
	return []byte(b.String())
}

// AssertGolden compares the given result's trace against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, FormatTrace(name, result))
}
