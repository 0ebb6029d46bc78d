package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "one step"
flow:
  - op: bootstrap
    actor: alice
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Flow, 1)
	assert.Equal(t, "bootstrap", s.Flow[0].Op)
	assert.Nil(t, s.Flow[0].Expect)
}

func TestParseScenario_ExpectClause(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: expect
description: "expect clause"
flow:
  - op: read_graph
    actor: alice
    org: o
    repo: r
    branch: master
    expect:
      triples: |
        <urn:s> <urn:p> "1" .
      len: 1
`))
	require.NoError(t, err)

	exp := s.Flow[0].Expect
	require.NotNil(t, exp)
	require.NotNil(t, exp.Len)
	assert.Equal(t, 1, *exp.Len)
	assert.Empty(t, exp.Outcome)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing name",
			doc:  "description: d\nflow:\n  - op: bootstrap\n    actor: a\n",
			want: "name is required",
		},
		{
			name: "missing description",
			doc:  "name: n\nflow:\n  - op: bootstrap\n    actor: a\n",
			want: "description is required",
		},
		{
			name: "empty flow",
			doc:  "name: n\ndescription: d\n",
			want: "flow list is required",
		},
		{
			name: "unknown field",
			doc:  "name: n\ndescription: d\nassertion: []\nflow:\n  - op: bootstrap\n    actor: a\n",
			want: "failed to parse YAML",
		},
		{
			name: "unknown op",
			doc:  "name: n\ndescription: d\nflow:\n  - op: merge\n    actor: a\n",
			want: `unknown op "merge"`,
		},
		{
			name: "missing actor",
			doc:  "name: n\ndescription: d\nflow:\n  - op: bootstrap\n",
			want: "actor is required",
		},
		{
			name: "unsaved reference",
			doc:  "name: n\ndescription: d\nflow:\n  - op: create_branch\n    actor: a\n    commit: $c1\n",
			want: `reference "$c1"`,
		},
		{
			name: "reference saved later",
			doc: "name: n\ndescription: d\nflow:\n" +
				"  - op: create_branch\n    actor: a\n    commit: $c1\n" +
				"  - op: commit\n    actor: a\n    save: c1\n",
			want: `reference "$c1"`,
		},
		{
			name: "bad patch",
			doc:  "name: n\ndescription: d\nflow:\n  - op: commit\n    actor: a\n    insert: \"@@@ .\"\n",
			want: "invalid N-Triples",
		},
		{
			name: "failing setup",
			doc: "name: n\ndescription: d\nsetup:\n  - op: bootstrap\n    actor: a\n    expect:\n      outcome: PermissionDenied\n" +
				"flow:\n  - op: bootstrap\n    actor: a\n",
			want: "setup steps must succeed",
		},
		{
			name: "unknown assertion",
			doc:  "name: n\ndescription: d\nflow:\n  - op: bootstrap\n    actor: a\nassertions:\n  - type: trace_order\n    graph: graphs/Cluster\n",
			want: `unknown assertion type "trace_order"`,
		},
		{
			name: "assertion without graph",
			doc:  "name: n\ndescription: d\nflow:\n  - op: bootstrap\n    actor: a\nassertions:\n  - type: graph_empty\n",
			want: "graph is required",
		},
		{
			name: "graph_empty with pattern",
			doc:  "name: n\ndescription: d\nflow:\n  - op: bootstrap\n    actor: a\nassertions:\n  - type: graph_empty\n    graph: g\n    pattern: \"?s ?p ?o\"\n",
			want: "graph_empty takes no pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_Testdata(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		t.Run(filepath.Base(f), func(t *testing.T) {
			s, err := LoadScenario(f)
			require.NoError(t, err)
			assert.NotEmpty(t, s.Flow)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
