package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/nodecheck/internal/check"
	"github.com/roach88/nodecheck/internal/document/sqlitedoc"
	"github.com/roach88/nodecheck/internal/job"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	TargetOptions
	Script string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <target>",
		Short: "Run a continuous check and print each new result",
		Long: `Start a continuous job on the target and print every new result as
the document changes. Results identical to the previous one are not printed.

Without --script the command runs until interrupted. With --script, the
YAML list of mutations is applied to the same store one at a time, each
waited out, and the command exits once the last one has been checked.

Examples:
  nodecheck watch --import ./shop.yaml path:shop/catalog --script ./edits.yaml
  nodecheck watch --db ./shop.db path:shop/catalog --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	addTargetFlags(cmd, &opts.TargetOptions)
	cmd.Flags().StringVar(&opts.Script, "script", "", "YAML list of mutations to apply")

	return cmd
}

func runWatch(opts *WatchOptions, target string, cmd *cobra.Command) error {
	var script []sqlitedoc.Mutation
	if opts.Script != "" {
		f, err := os.Open(opts.Script)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open script", err)
		}
		script, err = sqlitedoc.ParseScript(f)
		f.Close()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to parse script", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, opts.RootOptions, opts.Import)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.mgr.CreateJob(ctx, opts.ref(target), opts.selection(), true)
	if err != nil {
		return createError(err)
	}
	sub, err := s.mgr.Subscribe(id)
	if err != nil {
		return err
	}
	defer sub.Close()

	w := cmd.OutOrStdout()
	g, gctx := errgroup.WithContext(ctx)

	// The printer ends when the job is canceled and its feed closes.
	g.Go(func() error {
		for r := range sub.C() {
			if err := printWatchResult(opts.Format, w, r); err != nil {
				return err
			}
		}
		return nil
	})

	g.Go(func() error {
		defer func() {
			if err := s.mgr.CancelJob(id); err != nil {
				s.logger.Error("cancel failed", "job", id, "error", err)
			}
		}()
		if opts.Script == "" {
			<-gctx.Done()
			return nil
		}
		return applyScript(gctx, s, id, script)
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "watch failed", err)
	}

	snap, err := s.mgr.Status(id)
	if err != nil {
		return err
	}
	s.logger.Info("watch finished", "job", id, "runs", snap.Runs, "results", snap.ResultCount)
	return nil
}

// applyScript applies each mutation and waits for the job to catch up
// before the next one.
func applyScript(ctx context.Context, s *session, id job.ID, script []sqlitedoc.Mutation) error {
	if _, err := s.mgr.WaitIdle(ctx, id); err != nil {
		return err
	}
	for i, m := range script {
		if err := s.store.Apply(ctx, m); err != nil {
			return fmt.Errorf("script[%d]: %w", i, err)
		}
		if _, err := s.mgr.WaitIdle(ctx, id); err != nil {
			return fmt.Errorf("script[%d]: %w", i, err)
		}
		s.logger.Debug("script step applied", "index", i, "op", m.Op)
	}
	return nil
}

func printWatchResult(format string, w io.Writer, r check.Result) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(r)
	}
	writeResult(w, r)
	return nil
}
