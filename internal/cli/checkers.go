package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/nodecheck/internal/check"
)

// NewCheckersCommand creates the checkers command.
func NewCheckersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "checkers",
		Short: "List the configured checkers in execution order",
		Args:  cobra.NoArgs,
		// Errors are printed by main.
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			checkers, err := buildCheckers(rootOpts.Config)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load checkers", err)
			}
			infos := make([]check.CheckerInfo, len(checkers))
			for i, c := range checkers {
				infos[i] = c.Info()
			}
			return rootOpts.formatter(cmd).Success(infos, func(w io.Writer) {
				for _, info := range infos {
					fmt.Fprintf(w, "%-20s %s\n", info.ID, info.Name)
				}
			})
		},
	}
}
