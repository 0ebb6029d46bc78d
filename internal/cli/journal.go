package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/mms/internal/journal"
)

// JournalOptions holds flags for the journal commands.
type JournalOptions struct {
	*RootOptions
	Database string
	Limit    int
	Outcome  string
	Org      string
	Repo     string
}

// JournalListResult is the JSON payload of journal list.
type JournalListResult struct {
	Entries []journal.Entry `json:"entries"`
	Total   int             `json:"total"`
}

// NewJournalCommand creates the journal command group.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the transaction journal",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to journal database (default: journal.path from config)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List journaled transactions, newest first",
		Long: `List journaled transactions, newest first.

The journal keeps the outcome of every transaction after its audit node has
been removed from the store.

Examples:
  mms journal list --db ./journal.db
  mms journal list --db ./journal.db --outcome failed --org acme
  mms journal list --config ./mms.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalList(opts, cmd)
		},
	}
	list.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of entries")
	list.Flags().StringVar(&opts.Outcome, "outcome", "", "filter by outcome (committed|failed)")
	list.Flags().StringVar(&opts.Org, "org", "", "filter by org id")
	list.Flags().StringVar(&opts.Repo, "repo", "", "filter by repo id")

	cmd.AddCommand(list)
	return cmd
}

func runJournalList(opts *JournalOptions, cmd *cobra.Command) error {
	switch journal.Outcome(opts.Outcome) {
	case "", journal.OutcomeCommitted, journal.OutcomeFailed:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid outcome %q: must be committed or failed", opts.Outcome))
	}

	path := opts.Database
	if path == "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return err
		}
		path = cfg.Journal.Path
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no journal database: pass --db or set journal.path")
	}

	j, err := journal.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	entries, err := j.List(ctx, journal.ListOptions{
		Limit:   opts.Limit,
		Outcome: journal.Outcome(opts.Outcome),
		Org:     opts.Org,
		Repo:    opts.Repo,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list journal", err)
	}

	if opts.Format == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(CLIResponse{
			Status: "ok",
			Data:   JournalListResult{Entries: entries, Total: len(entries)},
		})
	}
	return outputJournalText(cmd, entries, opts.Verbose)
}

func outputJournalText(cmd *cobra.Command, entries []journal.Entry, verbose bool) error {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No journal entries.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tOPERATION\tACTOR\tOUTCOME\tSCOPE\tID")
	for _, e := range entries {
		outcome := string(e.Outcome)
		if e.Category != "" {
			outcome += " " + string(e.Category)
			if e.Reason != "" {
				outcome += "/" + string(e.Reason)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.StartedAt.UTC().Format(time.RFC3339),
			e.Operation, e.Actor, outcome, scopePath(e), e.ID)
		if verbose {
			if e.Message != "" {
				fmt.Fprintf(tw, "\t  %s\t\t\t\t\n", e.Message)
			}
			fmt.Fprintf(tw, "\t  passed: %s\t\t\t\t\n", strings.Join(e.Passed, ", "))
		}
	}
	return tw.Flush()
}

// scopePath renders a scope as org/repo/branch@commit#lock.
func scopePath(e journal.Entry) string {
	s := e.Scope
	var parts []string
	for _, p := range []string{s.Org, s.Repo, s.Branch} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	out := strings.Join(parts, "/")
	if s.Commit != "" {
		out += "@" + s.Commit
	}
	if s.Lock != "" {
		out += "#" + s.Lock
	}
	if out == "" {
		return "-"
	}
	return out
}
