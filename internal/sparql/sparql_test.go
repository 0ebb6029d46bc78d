package sparql

import (
	"testing"
	"time"

	"github.com/knakk/rdf"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mms/internal/mms"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestUpdateSharedClausesGolden(t *testing.T) {
	clauses := &Clauses{}

	repo := func(g *Pattern) { g.Raw("mor: a mms:Repo .") }
	first := NewUpdate(clauses).
		Insert(func(p *Pattern) { p.Graph("m-graph:Cluster", repo) }).
		Where(func(p *Pattern) {
			p.FilterNotExists(func(f *Pattern) { f.Graph("m-graph:Cluster", repo) })
		})

	// Built independently, joined later: still gets its separator.
	second := NewUpdate(clauses).
		Insert(func(p *Pattern) { p.Raw("<urn:a> <urn:b> <urn:c> .") }).
		Where(nil)

	prefixes := NewPrefixMap().
		Add("mms", mms.NamespaceMMS).
		Add("m-graph", "https://x.test/graphs/").
		Add("mor", "https://x.test/orgs/o/repos/r")

	text, err := Render(prefixes, Concat(first, second), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, clauses.Count())

	newGoldie(t).Assert(t, "update_shared_clauses", []byte(text+"\n"))
}

func TestConstructInspectGolden(t *testing.T) {
	q := NewQuery().
		Construct(func(p *Pattern) { p.Raw("<urn:mms:inspect> <urn:mms:pass> ?__mms_pass .") }).
		Where(func(p *Pattern) {
			p.Union(
				Build(func(b *Pattern) {
					b.Raw("mor: a mms:Repo .")
					b.Bind(`"repoExists"`, "?__mms_pass")
				}),
				NewPattern(),
			)
		})

	newGoldie(t).Assert(t, "construct_inspect", []byte(q.String()+"\n"))
}

func TestDeleteInsertIsOneOperation(t *testing.T) {
	clauses := &Clauses{}
	u := NewUpdate(clauses).
		Delete(func(p *Pattern) { p.Raw("?s ?p ?o .") }).
		Insert(func(p *Pattern) { p.Raw("?s ?p 1 .") }).
		Where(func(p *Pattern) { p.Raw("?s ?p ?o .") }).
		InsertData(func(p *Pattern) { p.Raw("<urn:a> <urn:b> 2 .") }).
		DeleteWhere(func(p *Pattern) { p.Raw("<urn:a> ?p ?o .") })

	assert.Equal(t, 3, clauses.Count())
	assert.Equal(t, `delete {
    ?s ?p ?o .
}
insert {
    ?s ?p 1 .
}
where {
    ?s ?p ?o .
}
;
insert data {
    <urn:a> <urn:b> 2 .
}
;
delete where {
    <urn:a> ?p ?o .
}`, u.String())
}

func TestRawDedents(t *testing.T) {
	p := NewPattern().Raw(`
		mor: a mms:Repo ;
		    mms:id ?_repoId .
	`)
	assert.Equal(t, "mor: a mms:Repo ;\n    mms:id ?_repoId .", p.String())

	assert.True(t, NewPattern().Raw("   \n  ").Empty())
}

func TestValuesAndOptional(t *testing.T) {
	p := NewPattern().
		Values("?s", "mor:", "mo:").
		Optional(func(o *Pattern) { o.Raw("?s ?p ?o .") })

	assert.Equal(t, "values ?s {\n    mor:\n    mo:\n}\noptional {\n    ?s ?p ?o .\n}", p.String())
}

func TestParamsApply(t *testing.T) {
	params := NewParams().
		Literal("message", "say \"hi\"\n?_repoId").
		IRI("target", "https://x.test/a").
		Time("now", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	text, err := params.Apply(`?_message ?_target ?_now ?_unbound ?__mms_pass`)
	require.NoError(t, err)
	assert.Equal(t,
		`"say \"hi\"\n?_repoId" <https://x.test/a> "2026-01-02T03:04:05Z"^^<http://www.w3.org/2001/XMLSchema#dateTime> ?_unbound ?__mms_pass`,
		text,
		"substituted values are not rescanned and unbound tokens stay variables")
}

func TestParamsRejectInvalidIRI(t *testing.T) {
	params := NewParams().IRI("bad", "https://x.test/a b").IRI("worse", "<x>")

	_, err := params.Apply("?_bad")
	require.Error(t, err)
	assert.True(t, mms.IsCategory(err, mms.CategoryValidation))
	assert.Contains(t, err.Error(), "a b", "first invalid value is reported")
}

func TestParamsMerge(t *testing.T) {
	base := NewParams().Literal("a", "1").Literal("b", "2")
	merged := NewParams().Merge(base).Merge(NewParams().Literal("b", "3"))

	text, err := merged.Apply("?_a ?_b")
	require.NoError(t, err)
	assert.Equal(t, `"1" "3"`, text)
	assert.True(t, merged.Has("a"))
}

func TestQuoteLiteralNormalizes(t *testing.T) {
	// "e" followed by a combining acute accent composes to U+00E9.
	assert.Equal(t, "\"\u00e9\"", QuoteLiteral("e\u0301"))
	assert.Equal(t, `"a\\b\tc"`, QuoteLiteral("a\\b\tc"))
}

func TestPrefixMap(t *testing.T) {
	m := NewPrefixMap().Add("b", "urn:b/").Add("a", "urn:a/").Add("b", "urn:bb/")

	assert.Equal(t, []string{"b", "a"}, m.Names())
	assert.Equal(t, "urn:bb/x", m.Expand("b:x"))
	assert.Equal(t, "zz:x", m.Expand("zz:x"))
	assert.Equal(t, "<urn:a/>", m.Ref("a:"))
	assert.Equal(t, "PREFIX b: <urn:bb/>\nPREFIX a: <urn:a/>", m.Declarations())
}

func TestFormatTriples(t *testing.T) {
	s, err := rdf.NewIRI("https://x.test/s?_repoId=1")
	require.NoError(t, err)
	p, err := rdf.NewIRI("https://x.test/p")
	require.NoError(t, err)
	plain, err := rdf.NewLiteral("two")
	require.NoError(t, err)
	tagged, err := rdf.NewLangLiteral("deux", "fr")
	require.NoError(t, err)

	text, err := FormatTriples([]rdf.Triple{
		{Subj: s, Pred: p, Obj: plain},
		{Subj: s, Pred: p, Obj: tagged},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"<https://x.test/s\\u003F_repoId=1> <https://x.test/p> \"two\" .\n"+
			"<https://x.test/s\\u003F_repoId=1> <https://x.test/p> \"deux\"@fr .",
		text)

	text, err = NewParams().Literal("repoId", "r").Apply(text)
	require.NoError(t, err)
	assert.NotContains(t, text, `"r"`, "escaped tokens are not substituted")
}

func TestFormatTriplesRejectsBlankNodes(t *testing.T) {
	b, err := rdf.NewBlank("b0")
	require.NoError(t, err)
	p, err := rdf.NewIRI("https://x.test/p")
	require.NoError(t, err)

	_, err = FormatTriples([]rdf.Triple{{Subj: b, Pred: p, Obj: p}})
	assert.True(t, mms.IsCategory(err, mms.CategoryValidation))
}
