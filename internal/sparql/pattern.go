package sparql

import (
	"fmt"
	"strings"
)

// Pattern accumulates the body of one clause: triple templates, graph
// blocks, groups, unions and filters. Parts are joined by newlines.
type Pattern struct {
	parts []string
}

// NewPattern returns an empty pattern.
func NewPattern() *Pattern {
	return &Pattern{}
}

// Build runs fn against a fresh pattern and returns it.
func Build(fn func(*Pattern)) *Pattern {
	p := NewPattern()
	if fn != nil {
		fn(p)
	}
	return p
}

// Raw appends text after stripping its common indentation. Blank text is
// ignored.
func (p *Pattern) Raw(text string) *Pattern {
	if t := dedent(text); t != "" {
		p.parts = append(p.parts, t)
	}
	return p
}

// Rawf is Raw with fmt.Sprintf formatting.
func (p *Pattern) Rawf(format string, args ...any) *Pattern {
	return p.Raw(fmt.Sprintf(format, args...))
}

// Graph appends "graph <name> { ... }".
func (p *Pattern) Graph(name string, fn func(*Pattern)) *Pattern {
	p.parts = append(p.parts, block("graph "+name, Build(fn).String()))
	return p
}

// Group appends "{ ... }".
func (p *Pattern) Group(fn func(*Pattern)) *Pattern {
	p.parts = append(p.parts, block("", Build(fn).String()))
	return p
}

// Optional appends "optional { ... }".
func (p *Pattern) Optional(fn func(*Pattern)) *Pattern {
	p.parts = append(p.parts, block("optional", Build(fn).String()))
	return p
}

// FilterNotExists appends "filter not exists { ... }".
func (p *Pattern) FilterNotExists(fn func(*Pattern)) *Pattern {
	p.parts = append(p.parts, block("filter not exists", Build(fn).String()))
	return p
}

// FilterExists appends "filter exists { ... }".
func (p *Pattern) FilterExists(fn func(*Pattern)) *Pattern {
	p.parts = append(p.parts, block("filter exists", Build(fn).String()))
	return p
}

// Union appends the branches as "{ a } union { b } ...". Nil branches are
// skipped; an empty branch renders as "{}" and always matches once.
func (p *Pattern) Union(branches ...*Pattern) *Pattern {
	var groups []string
	for _, b := range branches {
		if b == nil {
			continue
		}
		groups = append(groups, block("", b.String()))
	}
	if len(groups) > 0 {
		p.parts = append(p.parts, strings.Join(groups, "\nunion\n"))
	}
	return p
}

// Bind appends "bind(expr as ?v)".
func (p *Pattern) Bind(expr, variable string) *Pattern {
	p.parts = append(p.parts, fmt.Sprintf("bind(%s as %s)", expr, variable))
	return p
}

// Values appends an inline data block for one variable.
func (p *Pattern) Values(variable string, terms ...string) *Pattern {
	p.parts = append(p.parts, fmt.Sprintf("values %s {\n%s\n}", variable, indent(strings.Join(terms, "\n"))))
	return p
}

// Append copies the parts of other into p.
func (p *Pattern) Append(other *Pattern) *Pattern {
	if other != nil {
		p.parts = append(p.parts, other.parts...)
	}
	return p
}

// Empty reports whether nothing has been appended.
func (p *Pattern) Empty() bool {
	return len(p.parts) == 0
}

// String renders the pattern.
func (p *Pattern) String() string {
	return strings.Join(p.parts, "\n")
}

// block renders head followed by a braced, indented body.
func block(head, body string) string {
	open := "{"
	if head != "" {
		open = head + " {"
	}
	if body == "" {
		return open + "\n}"
	}
	return open + "\n" + indent(body) + "\n}"
}

const indentUnit = "    "

func indent(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indentUnit + line
		}
	}
	return strings.Join(lines, "\n")
}

// dedent removes leading and trailing blank lines and the whitespace prefix
// common to every non-blank line. Trailing whitespace is trimmed per line.
func dedent(text string) string {
	lines := strings.Split(text, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ""
	}

	common := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if common < 0 || n < common {
			common = n
		}
	}
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = strings.TrimRight(line[common:], " \t")
	}
	return strings.Join(lines, "\n")
}
