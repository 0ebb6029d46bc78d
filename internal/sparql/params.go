package sparql

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/mms/internal/mms"
)

// paramToken matches substitutable ?_name tokens. Engine-internal variables
// are spelled ?__mms_* and never match.
var paramToken = regexp.MustCompile(`\?_[A-Za-z][A-Za-z0-9_]*`)

// Params holds named values substituted for ?_name tokens at render time.
// Tokens with no value stay in the text as ordinary variables.
//
// Setters record the first invalid value; Apply reports it.
type Params struct {
	values map[string]string
	err    error
}

// NewParams returns an empty parameter set.
func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

// Literal binds name to a plain string literal.
func (p *Params) Literal(name, value string) *Params {
	p.values[name] = QuoteLiteral(value)
	return p
}

// Typed binds name to a literal with the given datatype IRI.
func (p *Params) Typed(name, value, datatype string) *Params {
	if err := ValidateIRI(datatype); err != nil {
		p.fail(err)
		return p
	}
	p.values[name] = QuoteLiteral(value) + "^^<" + datatype + ">"
	return p
}

// Time binds name to an xsd:dateTime literal in UTC.
func (p *Params) Time(name string, t time.Time) *Params {
	return p.Typed(name, t.UTC().Format(time.RFC3339Nano), mms.XSDDateTime)
}

// IRI binds name to an IRI reference.
func (p *Params) IRI(name, iri string) *Params {
	if err := ValidateIRI(iri); err != nil {
		p.fail(err)
		return p
	}
	p.values[name] = "<" + iri + ">"
	return p
}

// Merge copies every value of other into p. Values in other win.
func (p *Params) Merge(other *Params) *Params {
	if other == nil {
		return p
	}
	for k, v := range other.values {
		p.values[k] = v
	}
	if other.err != nil {
		p.fail(other.err)
	}
	return p
}

// Has reports whether name is bound.
func (p *Params) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Err returns the first invalid value recorded, if any.
func (p *Params) Err() error {
	return p.err
}

func (p *Params) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

// Apply substitutes every bound ?_name token in text in a single pass.
// Substituted values are never rescanned.
func (p *Params) Apply(text string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return paramToken.ReplaceAllStringFunc(text, func(tok string) string {
		if v, ok := p.values[tok[2:]]; ok {
			return v
		}
		return tok
	}), nil
}

// QuoteLiteral renders value as a double-quoted SPARQL string literal. The
// text is NFC-normalized first so canonically equal strings compare equal
// in the store.
func QuoteLiteral(value string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range norm.NFC.String(value) {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// ValidateIRI rejects characters that cannot appear inside <...>.
func ValidateIRI(iri string) error {
	if iri == "" {
		return mms.NewValidationError("IRI must not be empty")
	}
	for _, r := range iri {
		if r <= 0x20 || strings.ContainsRune("<>\"{}|^`\\", r) {
			return mms.NewValidationError("IRI %q contains illegal character %q", iri, r)
		}
	}
	return nil
}

// Render prepends PREFIX declarations for every entry of prefixes and
// substitutes params into body.
func Render(prefixes *PrefixMap, body string, params *Params) (string, error) {
	if params == nil {
		params = NewParams()
	}
	text, err := params.Apply(body)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	if prefixes == nil {
		return text, nil
	}
	return prefixes.Declarations() + "\n" + text, nil
}
