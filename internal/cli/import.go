package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/nodecheck/internal/document/sqlitedoc"
)

// ImportResult is the JSON payload of the import command.
type ImportResult struct {
	Document string `json:"document"`
	Database string `json:"database"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <tree.yaml>",
		Short: "Import a YAML document tree into the database",
		Long: `Import a document tree described in YAML into the SQLite store.

References are written as label paths relative to the document root.

Example:
  nodecheck import --db ./shop.db ./shop.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], cmd)
		},
	}
}

func runImport(opts *RootOptions, path string, cmd *cobra.Command) error {
	store, err := sqlitedoc.Open(opts.Config.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			opts.Logger.Error("error closing database", "error", closeErr)
		}
	}()

	docID, err := importFile(cmd.Context(), store, path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to import document", err)
	}
	opts.Logger.Info("document imported", "document", docID, "path", path)

	result := ImportResult{Document: docID, Database: opts.Config.Database}
	return opts.formatter(cmd).Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "Imported document %q into %s\n", docID, result.Database)
	})
}
