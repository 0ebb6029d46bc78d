package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/mms/internal/engine"
	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/resource"
	"github.com/roach88/mms/internal/store"
	"github.com/roach88/mms/internal/txn"
)

// Target is the deployment a scenario runs against. RootIRI must match the
// service's configured root.
type Target struct {
	Service *resource.Service
	Store   store.Store
	RootIRI string
	Logger  *slog.Logger
}

// Harness executes the steps of one scenario.
type Harness struct {
	target   Target
	scenario string
	saved    map[string]string
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Execute setup steps; any failure aborts the run with an error
// 2. Execute flow steps, recording outcomes and expectation mismatches
// 3. Evaluate assertions against the store
//
// The scenario runs against whatever state the target already holds, so
// scenarios that bootstrap need a fresh dataset.
func Run(ctx context.Context, target Target, scenario *Scenario) (*Result, error) {
	logger := target.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Harness{
		target:   target,
		scenario: scenario.Name,
		saved:    make(map[string]string),
		logger:   logger.With("scenario", scenario.Name),
	}

	result := NewResult()
	if err := h.executeSteps(ctx, "setup", scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeSteps(ctx, "flow", scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	for _, msg := range EvaluateAssertions(ctx, target, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeSteps runs steps in order. Setup steps must succeed; flow
// mismatches are recorded on result and do not stop the run.
func (h *Harness) executeSteps(ctx context.Context, section string, steps []Step, result *Result) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := h.call(ctx, step)
		rec := StepRecord{
			Section: section,
			Index:   i,
			Op:      step.Op,
			Actor:   step.Actor,
			Scope:   recordScope(step).String(),
			Outcome: OutcomeOf(err),
		}
		if res != nil {
			rec.Len = res.Graph.Len()
		}
		result.Trace = append(result.Trace, rec)
		h.logger.Debug("step executed", "section", section, "index", i, "op", step.Op, "outcome", rec.Outcome)

		mismatches := CheckExpect(step.Expect, res, err)
		if section == "setup" && len(mismatches) > 0 {
			return fmt.Errorf("step %d (%s): %s", i, step.Op, strings.Join(mismatches, "; "))
		}
		for _, m := range mismatches {
			result.AddError(fmt.Sprintf("%s[%d] %s by %s: %s", section, i, step.Op, step.Actor, m))
		}

		if step.Save != "" && res != nil {
			h.saved[step.Save] = res.CommitID
		}
	}
	return nil
}

// resolve expands a "$name" reference to its saved commit id.
func (h *Harness) resolve(ref string) string {
	if name, ok := strings.CutPrefix(ref, "$"); ok {
		return h.saved[name]
	}
	return ref
}

func (h *Harness) scope(step Step) mms.Scope {
	s := recordScope(step)
	s.Commit = h.resolve(s.Commit)
	return s
}

// recordScope renders the step's scope with commit references unresolved,
// so traces are stable across runs.
func recordScope(step Step) mms.Scope {
	s := mms.Scope{Org: step.Org, Repo: step.Repo, Branch: step.Branch, Lock: step.Lock}
	if strings.HasSuffix(step.Op, "_lock") {
		s.Commit = step.Commit
	}
	return s
}

// call dispatches one step to the service.
func (h *Harness) call(ctx context.Context, step Step) (*engine.Result, error) {
	svc := h.target.Service
	req := resource.Request{
		Actor: step.Actor,
		Scope: h.scope(step),
		HTTP:  txn.Request{Method: "SCENARIO", Path: h.scenario + "/" + step.Op},
	}

	switch step.Op {
	case "bootstrap":
		return svc.Bootstrap(ctx, req)
	case "create_org":
		return svc.CreateOrg(ctx, req, resource.OrgInput{Title: step.Title})
	case "get_org":
		return svc.GetOrg(ctx, req)
	case "create_repo":
		md, err := store.ParseNTriplesString(step.Insert)
		if err != nil {
			return nil, mms.NewValidationError("metadata: %v", err)
		}
		return svc.CreateRepo(ctx, req, resource.RepoInput{Title: step.Title, Metadata: md.Triples()})
	case "get_repo":
		return svc.GetRepo(ctx, req)
	case "create_branch":
		return svc.CreateBranch(ctx, req, resource.BranchInput{
			Title:  step.Title,
			Commit: h.resolve(step.Commit),
			From:   step.From,
		})
	case "get_branch":
		return svc.GetBranch(ctx, req)
	case "commit":
		del, err := store.ParseNTriplesString(step.Delete)
		if err != nil {
			return nil, mms.NewValidationError("delete: %v", err)
		}
		ins, err := store.ParseNTriplesString(step.Insert)
		if err != nil {
			return nil, mms.NewValidationError("insert: %v", err)
		}
		return svc.Commit(ctx, req, resource.CommitInput{
			Message: step.Message,
			Delete:  del.Triples(),
			Insert:  ins.Triples(),
		})
	case "read_graph":
		return svc.ReadBranchGraph(ctx, req)
	case "create_lock":
		return svc.CreateLock(ctx, req)
	case "get_lock":
		return svc.GetLock(ctx, req)
	case "delete_lock":
		return svc.DeleteLock(ctx, req)
	default:
		return nil, mms.NewValidationError("unknown op %q", step.Op)
	}
}

// OutcomeOf renders err as an outcome string: "ok", "Category" or
// "Category/Reason".
func OutcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	out := string(mms.CategoryOf(err))
	if reason := mms.ReasonOf(err); reason != "" {
		out += "/" + string(reason)
	}
	return out
}

// MatchOutcome reports whether actual satisfies expected. A bare category
// matches every reason of that category.
func MatchOutcome(expected, actual string) bool {
	if expected == "" {
		expected = OutcomeOK
	}
	if expected == actual {
		return true
	}
	category, _, _ := strings.Cut(actual, "/")
	return !strings.Contains(expected, "/") && expected == category
}

// CheckExpect compares a step's result against its expect clause and
// returns the mismatches.
func CheckExpect(expect *ExpectClause, res *engine.Result, err error) []string {
	if expect == nil {
		expect = &ExpectClause{}
	}

	var mismatches []string
	actual := OutcomeOf(err)
	if !MatchOutcome(expect.Outcome, actual) {
		want := expect.Outcome
		if want == "" {
			want = OutcomeOK
		}
		msg := fmt.Sprintf("expected outcome %s, got %s", want, actual)
		if err != nil {
			msg += ": " + mms.PublicMessage(err)
		}
		return append(mismatches, msg)
	}
	if err != nil {
		return nil
	}

	if expect.Len != nil && res.Graph.Len() != *expect.Len {
		mismatches = append(mismatches, fmt.Sprintf("expected %d statements, got %d", *expect.Len, res.Graph.Len()))
	}
	want, parseErr := store.ParseNTriplesString(expect.Triples)
	if parseErr != nil {
		return append(mismatches, parseErr.Error())
	}
	for _, t := range want.Triples() {
		if !res.Graph.Has(t.Subj.String(), t.Pred.String(), t.Obj.String()) {
			mismatches = append(mismatches, "missing statement "+strings.TrimSpace(store.NewGraph(t).String()))
		}
	}
	return mismatches
}
