package journal

import (
	"context"
	"fmt"
	"time"
)

// Record inserts an entry.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a transaction recorded
// twice keeps its first entry.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	passed, err := marshalPassed(e.Passed)
	if err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO transactions
		(id, operation, actor, org, repo, branch, commit_id, lock_id, method, path,
		 outcome, category, reason, message, passed, started_at, duration_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		e.Operation,
		e.Actor,
		e.Scope.Org,
		e.Scope.Repo,
		e.Scope.Branch,
		e.Scope.Commit,
		e.Scope.Lock,
		e.Method,
		e.Path,
		string(e.Outcome),
		string(e.Category),
		string(e.Reason),
		e.Message,
		passed,
		e.StartedAt.UTC().Format(time.RFC3339Nano),
		e.Duration.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}

	return nil
}
