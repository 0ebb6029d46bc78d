package harness

// StepRecord is the trace entry of one executed step.
type StepRecord struct {
	Section string `json:"section"` // "setup" or "flow"
	Index   int    `json:"index"`
	Op      string `json:"op"`
	Actor   string `json:"actor"`
	Scope   string `json:"scope"`
	Outcome string `json:"outcome"`

	// Len is the number of statements in the result graph; zero on failure.
	Len int `json:"len"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []StepRecord `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepRecord{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
