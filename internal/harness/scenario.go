package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mms/internal/store"
)

// Scenario defines a sequence of resource operations and the state they
// must leave behind.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup contains steps that establish initial state. Every setup step
	// must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the steps under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the store after the flow.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one resource operation.
type Step struct {
	Op    string `yaml:"op"`
	Actor string `yaml:"actor"`

	Org    string `yaml:"org,omitempty"`
	Repo   string `yaml:"repo,omitempty"`
	Branch string `yaml:"branch,omitempty"`
	Lock   string `yaml:"lock,omitempty"`

	// Commit addresses a commit for lock operations, or the start point of
	// create_branch. "$name" refers to a saved commit id.
	Commit string `yaml:"commit,omitempty"`

	// From names the branch whose head create_branch starts at.
	From string `yaml:"from,omitempty"`

	Title   string `yaml:"title,omitempty"`
	Message string `yaml:"message,omitempty"`

	// Delete and Insert are N-Triples documents for commit. Insert also
	// carries the repo metadata of create_repo.
	Delete string `yaml:"delete,omitempty"`
	Insert string `yaml:"insert,omitempty"`

	// Save stores the result's commit id under this name.
	Save string `yaml:"save,omitempty"`

	// Expect validates the step. Nil means the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Outcome is "ok", a category, or "Category/Reason". Empty means "ok".
	Outcome string `yaml:"outcome,omitempty"`

	// Triples is an N-Triples document whose statements must all appear in
	// the result graph.
	Triples string `yaml:"triples,omitempty"`

	// Len is the exact number of statements in the result graph.
	Len *int `yaml:"len,omitempty"`
}

// Assertion validates the final store state.
type Assertion struct {
	// Type is graph_empty or graph_count.
	Type string `yaml:"type"`

	// Graph is the graph IRI relative to the root IRI, e.g.
	// "graphs/Transactions".
	Graph string `yaml:"graph"`

	// Pattern is a SPARQL group body binding ?s ?p ?o (graph_count only).
	// Defaults to "?s ?p ?o".
	Pattern string `yaml:"pattern,omitempty"`

	// Count is the expected number of matching statements (graph_count only).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertGraphEmpty = "graph_empty"
	AssertGraphCount = "graph_count"
)

// Outcome constants.
const (
	OutcomeOK = "ok"
)

// Ops lists the supported step operations.
var Ops = []string{
	"bootstrap",
	"create_org", "get_org",
	"create_repo", "get_repo",
	"create_branch", "get_branch", "commit", "read_graph",
	"create_lock", "get_lock", "delete_lock",
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	saved := map[string]bool{}
	check := func(section string, steps []Step) error {
		for i, step := range steps {
			if err := validateStep(step, saved); err != nil {
				return fmt.Errorf("%s[%d]: %w", section, i, err)
			}
			if section == "setup" && step.Expect != nil && step.Expect.Outcome != "" && step.Expect.Outcome != OutcomeOK {
				return fmt.Errorf("%s[%d]: setup steps must succeed", section, i)
			}
			if step.Save != "" {
				saved[step.Save] = true
			}
		}
		return nil
	}
	if err := check("setup", s.Setup); err != nil {
		return err
	}
	if err := check("flow", s.Flow); err != nil {
		return err
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step, saved map[string]bool) error {
	if !slices.Contains(Ops, step.Op) {
		return fmt.Errorf("unknown op %q", step.Op)
	}
	if step.Actor == "" {
		return fmt.Errorf("actor is required")
	}
	for _, ref := range []string{step.Commit, step.From} {
		if name, ok := strings.CutPrefix(ref, "$"); ok && !saved[name] {
			return fmt.Errorf("reference %q is not saved by an earlier step", ref)
		}
	}
	for _, doc := range []string{step.Delete, step.Insert} {
		if _, err := store.ParseNTriplesString(doc); err != nil {
			return fmt.Errorf("invalid N-Triples: %w", err)
		}
	}
	if step.Expect != nil {
		if _, err := store.ParseNTriplesString(step.Expect.Triples); err != nil {
			return fmt.Errorf("invalid expected triples: %w", err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertGraphEmpty, AssertGraphCount:
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	if a.Graph == "" {
		return fmt.Errorf("graph is required")
	}
	if a.Type == AssertGraphEmpty && a.Pattern != "" {
		return fmt.Errorf("graph_empty takes no pattern")
	}
	return nil
}
