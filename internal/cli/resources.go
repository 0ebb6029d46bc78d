package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/mms/internal/engine"
	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/resource"
	"github.com/roach88/mms/internal/store"
	"github.com/roach88/mms/internal/txn"
)

// ActorOptions holds the identity flag shared by resource commands.
type ActorOptions struct {
	*RootOptions
	Actor string
}

func addActorFlag(cmd *cobra.Command, opts *ActorOptions) {
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", "", "user id to act as (required)")
	_ = cmd.MarkPersistentFlagRequired("actor")
}

type serviceCall func(ctx context.Context, svc *resource.Service, req resource.Request) (*engine.Result, error)

// runResource wires the runtime, runs call as the actor on scope and prints
// the outcome.
func runResource(opts *ActorOptions, cmd *cobra.Command, scope mms.Scope, call serviceCall) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	rt, err := openRuntime(opts.RootOptions, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			rt.logger.Error("error closing runtime", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	res, err := call(ctx, rt.service, resource.Request{
		Actor: opts.Actor,
		Scope: scope,
		HTTP:  txn.Request{Method: "CLI", Path: cmd.CommandPath()},
	})
	if err != nil {
		if outErr := out.ServiceError(err); outErr != nil {
			return outErr
		}
		exitErr := WrapExitError(exitCodeFor(err), cmd.CommandPath()+" failed", err)
		exitErr.Silent = true
		return exitErr
	}
	return out.Result(res)
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Seed role definitions and the cluster admin",
		Long: `Seed the role definitions and grant the actor Admin over the cluster.

Succeeds once per store; later runs fail with AlreadyExists.

Example:
  mms init --actor root`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResource(opts, cmd, mms.Scope{}, func(ctx context.Context, svc *resource.Service, req resource.Request) (*engine.Result, error) {
				return svc.Bootstrap(ctx, req)
			})
		},
	}
	addActorFlag(cmd, opts)
	return cmd
}

// NewOrgCommand creates the org command group.
func NewOrgCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActorOptions{RootOptions: rootOpts}
	var title string

	cmd := &cobra.Command{
		Use:   "org",
		Short: "Create and read orgs",
	}
	addActorFlag(cmd, opts)

	create := &cobra.Command{
		Use:           "create <org>",
		Short:         "Create an org",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResource(opts, cmd, mms.Scope{Org: args[0]}, func(ctx context.Context, svc *resource.Service, req resource.Request) (*engine.Result, error) {
				return svc.CreateOrg(ctx, req, resource.OrgInput{Title: title})
			})
		},
	}
	create.Flags().StringVar(&title, "title", "", "org title")

	get := &cobra.Command{
		Use:           "get <org>",
		Short:         "Read an org and its grants",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResource(opts, cmd, mms.Scope{Org: args[0]}, func(ctx context.Context, svc *resource.Service, req resource.Request) (*engine.Result, error) {
				return svc.GetOrg(ctx, req)
			})
		},
	}

	cmd.AddCommand(create, get)
	return cmd
}

// NewRepoCommand creates the repo command group.
func NewRepoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActorOptions{RootOptions: rootOpts}
	var title, metadataFile string

	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Create and read repos",
	}
	addActorFlag(cmd, opts)

	create := &cobra.Command{
		Use:   "create <org> <repo>",
		Short: "Create a repo with its root commit and default branch",
		Example: `  mms repo create acme models --actor alice --title "Models" --metadata repo.nt`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := readPatch(metadataFile)
			if err != nil {
				return err
			}
			return runResource(opts, cmd, mms.Scope{Org: args[0], Repo: args[1]}, func(ctx context.Context, svc *resource.Service, req resource.Request) (*engine.Result, error) {
				return svc.CreateRepo(ctx, req, resource.RepoInput{Title: title, Metadata: md.Triples()})
			})
		},
	}
	create.Flags().StringVar(&title, "title", "", "repo title")
	create.Flags().StringVar(&metadataFile, "metadata", "", "N-Triples file of statements about the repo")

	get := &cobra.Command{
		Use:           "get <org> <repo>",
		Short:         "Read a repo and its grants",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResource(opts, cmd, mms.Scope{Org: args[0], Repo: args[1]}, func(ctx context.Context, svc *resource.Service, req resource.Request) (*engine.Result, error) {
				return svc.GetRepo(ctx, req)
			})
		},
	}

	cmd.AddCommand(create, get)
	return cmd
}

// NewBranchCommand creates the branch command group, including commits and
// graph reads.
func NewBranchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "branch",
		Short: "Create branches, commit to them and read their graphs",
	}
	addActorFlag(cmd, opts)

	var in resource.BranchInput
	create := &cobra.Command{
		Use:   "create <org> <repo> <branch>",
		Short: "Create a branch at a commit or at another branch's head",
		Example: `  mms branch create acme models review --actor alice --from master
  mms branch create acme models restore --actor alice --commit 0190c3e2-...`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResource(opts, cmd, branchScope(args), func(ctx context.Context, svc *resource.Service, req resource.Request) (*engine.Result, error) {
				return svc.CreateBranch(ctx, req, in)
			})
		},
	}
	create.Flags().StringVar(&in.Title, "title", "", "branch title")
	create.Flags().StringVar(&in.Commit, "commit", "", "commit id to start at")
	create.Flags().StringVar(&in.From, "from", "", "branch whose head to start at (default: the default branch)")

	get := &cobra.Command{
		Use:           "get <org> <repo> <branch>",
		Short:         "Read a branch and its head commit",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResource(opts, cmd, branchScope(args), func(ctx context.Context, svc *resource.Service, req resource.Request) (*engine.Result, error) {
				return svc.GetBranch(ctx, req)
			})
		},
	}

	var message, deleteFile, insertFile string
	commit := &cobra.Command{
		Use:   "commit <org> <repo> <branch>",
		Short: "Commit an N-Triples patch to a branch",
		Example: `  mms branch commit acme models master --actor alice -m "fix label" \
      --delete old.nt --insert new.nt`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			del, err := readPatch(deleteFile)
			if err != nil {
				return err
			}
			ins, err := readPatch(insertFile)
			if err != nil {
				return err
			}
			return runResource(opts, cmd, branchScope(args), func(ctx context.Context, svc *resource.Service, req resource.Request) (*engine.Result, error) {
				return svc.Commit(ctx, req, resource.CommitInput{Message: message, Delete: del.Triples(), Insert: ins.Triples()})
			})
		},
	}
	commit.Flags().StringVarP(&message, "message", "m", "", "commit message")
	commit.Flags().StringVar(&deleteFile, "delete", "", "N-Triples file of statements to remove")
	commit.Flags().StringVar(&insertFile, "insert", "", "N-Triples file of statements to add")

	graph := &cobra.Command{
		Use:           "graph <org> <repo> <branch>",
		Short:         "Print the model graph at the branch head",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResource(opts, cmd, branchScope(args), func(ctx context.Context, svc *resource.Service, req resource.Request) (*engine.Result, error) {
				return svc.ReadBranchGraph(ctx, req)
			})
		},
	}

	cmd.AddCommand(create, get, commit, graph)
	return cmd
}

// NewLockCommand creates the lock command group.
func NewLockCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Create, read and delete commit locks",
		Long: `Create, read and delete locks on commits.

Deleting a lock also clears an interim lock left behind by an interrupted
commit.`,
	}
	addActorFlag(cmd, opts)

	sub := func(use, short string, call serviceCall) *cobra.Command {
		return &cobra.Command{
			Use:           use + " <org> <repo> <commit> <lock>",
			Short:         short,
			Args:          cobra.ExactArgs(4),
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				scope := mms.Scope{Org: args[0], Repo: args[1], Commit: args[2], Lock: args[3]}
				return runResource(opts, cmd, scope, call)
			},
		}
	}

	cmd.AddCommand(
		sub("create", "Lock a commit", func(ctx context.Context, svc *resource.Service, req resource.Request) (*engine.Result, error) {
			return svc.CreateLock(ctx, req)
		}),
		sub("get", "Read a lock and its grants", func(ctx context.Context, svc *resource.Service, req resource.Request) (*engine.Result, error) {
			return svc.GetLock(ctx, req)
		}),
		sub("delete", "Delete a lock", func(ctx context.Context, svc *resource.Service, req resource.Request) (*engine.Result, error) {
			return svc.DeleteLock(ctx, req)
		}),
	)
	return cmd
}

func branchScope(args []string) mms.Scope {
	return mms.Scope{Org: args[0], Repo: args[1], Branch: args[2]}
}

// readPatch parses an N-Triples file. An empty path is an empty patch.
func readPatch(path string) (*store.Graph, error) {
	if path == "" {
		return store.NewGraph(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open patch", err)
	}
	defer f.Close()
	g, err := store.ParseNTriples(f)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to parse patch "+path, err)
	}
	return g, nil
}
