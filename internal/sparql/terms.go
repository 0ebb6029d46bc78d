package sparql

import (
	"strings"

	"github.com/knakk/rdf"

	"github.com/roach88/mms/internal/mms"
)

const xsdString = mms.NamespaceXSD + "string"

// questionEscape is the SPARQL codepoint escape for "?". Caller-supplied
// terms are spliced into update text before parameter substitution, so a
// literal or IRI containing "?_name" must not be mistaken for a token.
const questionEscape = `\u003F`

// FormatTerm renders a concrete RDF term for inclusion in update text.
// Blank nodes are rejected because they cannot be matched by a delete.
func FormatTerm(t rdf.Term) (string, error) {
	switch v := t.(type) {
	case rdf.IRI:
		if err := ValidateIRI(v.String()); err != nil {
			return "", err
		}
		return "<" + strings.ReplaceAll(v.String(), "?", questionEscape) + ">", nil
	case rdf.Literal:
		out := strings.ReplaceAll(QuoteLiteral(v.String()), "?", questionEscape)
		if lang := v.Lang(); lang != "" {
			return out + "@" + lang, nil
		}
		if dt := v.DataType.String(); dt != "" && dt != xsdString {
			if err := ValidateIRI(dt); err != nil {
				return "", err
			}
			return out + "^^<" + dt + ">", nil
		}
		return out, nil
	case rdf.Blank:
		return "", mms.NewValidationError("blank nodes are not allowed in a patch")
	default:
		return "", mms.NewValidationError("unsupported RDF term %v", t)
	}
}

// FormatTriples renders triples as one "s p o ." statement per line.
func FormatTriples(triples []rdf.Triple) (string, error) {
	lines := make([]string, 0, len(triples))
	for _, tr := range triples {
		s, err := FormatTerm(tr.Subj)
		if err != nil {
			return "", err
		}
		p, err := FormatTerm(tr.Pred)
		if err != nil {
			return "", err
		}
		o, err := FormatTerm(tr.Obj)
		if err != nil {
			return "", err
		}
		lines = append(lines, s+" "+p+" "+o+" .")
	}
	return strings.Join(lines, "\n"), nil
}
