package sparql

import (
	"fmt"
	"strings"
)

// PrefixMap is an insertion-ordered short-name to IRI map. Order is kept so
// rendered PREFIX blocks are byte-for-byte reproducible.
type PrefixMap struct {
	names []string
	iris  map[string]string
}

// NewPrefixMap returns an empty map.
func NewPrefixMap() *PrefixMap {
	return &PrefixMap{iris: make(map[string]string)}
}

// Add binds name to iri. Re-adding a name replaces its IRI in place.
func (m *PrefixMap) Add(name, iri string) *PrefixMap {
	if _, ok := m.iris[name]; !ok {
		m.names = append(m.names, name)
	}
	m.iris[name] = iri
	return m
}

// IRI returns the IRI bound to name, or "" when unbound.
func (m *PrefixMap) IRI(name string) string {
	return m.iris[name]
}

// Names returns prefix names in insertion order.
func (m *PrefixMap) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Expand resolves a prefixed name such as "mor:" or "mms:Repo" to its full
// IRI. Unknown prefixes return the input unchanged.
func (m *PrefixMap) Expand(prefixed string) string {
	name, local, ok := strings.Cut(prefixed, ":")
	if !ok {
		return prefixed
	}
	iri, ok := m.iris[name]
	if !ok {
		return prefixed
	}
	return iri + local
}

// Ref renders a prefixed name as an angle-bracketed IRI for messages.
func (m *PrefixMap) Ref(prefixed string) string {
	return "<" + m.Expand(prefixed) + ">"
}

// Declarations renders one PREFIX line per entry.
func (m *PrefixMap) Declarations() string {
	var b strings.Builder
	for _, name := range m.names {
		fmt.Fprintf(&b, "PREFIX %s: <%s>\n", name, m.iris[name])
	}
	return strings.TrimSuffix(b.String(), "\n")
}
