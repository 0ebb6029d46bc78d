package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/mms/internal/mms"
)

// ErrNotFound is returned by Get when no entry has the id.
var ErrNotFound = errors.New("journal entry not found")

// ListOptions filters List. Zero values mean no filter.
type ListOptions struct {
	// Limit caps the number of entries. Zero means 100.
	Limit int

	Outcome Outcome
	Org     string
	Repo    string
}

const defaultListLimit = 100

const selectColumns = `
	SELECT seq, id, operation, actor, org, repo, branch, commit_id, lock_id, method, path,
	       outcome, category, reason, message, passed, started_at, duration_us
	FROM transactions`

// List returns entries newest first.
//
// Returns an empty slice (not nil) if nothing matches.
func (j *Journal) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if opts.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, string(opts.Outcome))
	}
	if opts.Org != "" {
		where = append(where, "org = ?")
		args = append(args, opts.Org)
	}
	if opts.Repo != "" {
		where = append(where, "repo = ?")
		args = append(args, opts.Repo)
	}

	query := selectColumns
	if len(where) > 0 {
		query += "\n\tWHERE " + strings.Join(where, " AND ")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += "\n\tORDER BY seq DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return entries, nil
}

// Get returns the entry for a transaction id.
func (j *Journal) Get(ctx context.Context, id string) (Entry, error) {
	row := j.db.QueryRowContext(ctx, selectColumns+"\n\tWHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                         Entry
		outcome, category, reason string
		passed, startedAt         string
		durationMicros            int64
	)
	err := row.Scan(
		&e.Seq, &e.ID, &e.Operation, &e.Actor,
		&e.Scope.Org, &e.Scope.Repo, &e.Scope.Branch, &e.Scope.Commit, &e.Scope.Lock,
		&e.Method, &e.Path,
		&outcome, &category, &reason, &e.Message,
		&passed, &startedAt, &durationMicros,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan transaction: %w", err)
	}

	e.Outcome = Outcome(outcome)
	e.Category = mms.Category(category)
	e.Reason = mms.Reason(reason)
	e.Duration = time.Duration(durationMicros) * time.Microsecond

	if e.Passed, err = unmarshalPassed(passed); err != nil {
		return Entry{}, err
	}
	if e.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return Entry{}, fmt.Errorf("parse started_at: %w", err)
	}
	return e, nil
}
