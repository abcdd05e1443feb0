package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/nodecheck/internal/check"
	"github.com/roach88/nodecheck/internal/job"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	TargetOptions
	Timeout time.Duration
	Strict  bool // fail when the result carries error-severity messages
}

// CheckResult is the JSON payload of the check command.
type CheckResult struct {
	Job    job.Snapshot  `json:"job"`
	Result *check.Result `json:"result,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <target>",
		Short: "Run a one-off check of a node",
		Long: `Run every selected checker once against the target node and its
subtree, and print the result.

Exit codes:
  0 - The check completed
  1 - The job failed, the target no longer exists, or --strict found errors
  2 - Command error (bad target, unknown checker, unreadable files)

Examples:
  nodecheck check --db ./shop.db path:shop/catalog
  nodecheck check --import ./shop.yaml path:shop/catalog --select required-name
  nodecheck check --db ./shop.db node:1 --alt path:shop/catalog --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	addTargetFlags(cmd, &opts.TargetOptions)
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "maximum time to wait for the check")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when the result has error-severity messages")

	return cmd
}

func addTargetFlags(cmd *cobra.Command, t *TargetOptions) {
	cmd.Flags().StringArrayVar(&t.Alternates, "alt", nil, "alternate representation of the target (repeatable)")
	cmd.Flags().StringSliceVar(&t.Select, "select", nil, "checker ids to run (default all)")
	cmd.Flags().StringVar(&t.Import, "import", "", "YAML document tree to import before starting")
}

func runCheck(opts *CheckOptions, target string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, opts.RootOptions, opts.Import)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.mgr.CreateJob(ctx, opts.ref(target), opts.selection(), false)
	if err != nil {
		return createError(err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	snap, err := s.mgr.WaitIdle(waitCtx, id)
	if err != nil {
		return WrapExitError(ExitFailure, "check did not finish", err)
	}

	out := CheckResult{Job: snap}
	if r, ok, err := s.mgr.LatestResult(id); err == nil && ok {
		out.Result = &r
	}

	err = opts.formatter(cmd).Success(out, func(w io.Writer) {
		writeSnapshot(w, snap)
		if out.Result != nil {
			writeResult(w, *out.Result)
		}
	})
	if err != nil {
		return err
	}
	return checkOutcome(snap, out.Result, opts.Strict)
}

// checkOutcome turns a settled one-off job into an exit status.
func checkOutcome(snap job.Snapshot, r *check.Result, strict bool) error {
	switch snap.Status.State {
	case job.StateError:
		return NewExitError(ExitFailure, fmt.Sprintf("check failed: %s", snap.Status.Message))
	case job.StateNodeDeleted:
		return NewExitError(ExitFailure, "target node does not exist")
	}
	if strict && r != nil {
		if n := check.CountBySeverity(r.Messages)[check.SeverityError]; n > 0 {
			return NewExitError(ExitFailure, fmt.Sprintf("%d error(s) found", n))
		}
	}
	return nil
}
