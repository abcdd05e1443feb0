package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/nodecheck/internal/check"
	"github.com/roach88/nodecheck/internal/checker"
	"github.com/roach88/nodecheck/internal/checker/cuecheck"
	"github.com/roach88/nodecheck/internal/config"
	"github.com/roach88/nodecheck/internal/document/sqlitedoc"
	"github.com/roach88/nodecheck/internal/engine"
	"github.com/roach88/nodecheck/internal/job"
)

// TargetOptions are the flags shared by commands that start a job.
type TargetOptions struct {
	Alternates []string
	Select     []string
	Import     string
}

func (t TargetOptions) ref(primary string) check.Ref {
	return check.NewRef(primary, t.Alternates...)
}

func (t TargetOptions) selection() job.Selection {
	if len(t.Select) == 0 {
		return job.All()
	}
	return job.Multiple(t.Select...)
}

// session is an open store plus a manager over it.
type session struct {
	store  *sqlitedoc.Store
	mgr    *engine.Manager
	logger *slog.Logger
}

// openSession opens the configured store, optionally imports a document
// into it, and starts a manager with the configured checkers.
func openSession(ctx context.Context, opts *RootOptions, importPath string) (*session, error) {
	store, err := sqlitedoc.Open(opts.Config.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	if importPath != "" {
		docID, err := importFile(ctx, store, importPath)
		switch {
		case errors.Is(err, sqlitedoc.ErrDocumentExists):
			opts.Logger.Warn("document already imported", "path", importPath)
		case err != nil:
			store.Close()
			return nil, WrapExitError(ExitCommandError, "failed to import document", err)
		default:
			opts.Logger.Info("document imported", "document", docID, "path", importPath)
		}
	}

	checkers, err := buildCheckers(opts.Config)
	if err != nil {
		store.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load checkers", err)
	}

	mgr, err := engine.NewManager(store, checkers,
		engine.WithMaxConcurrent(opts.Config.MaxConcurrent),
		engine.WithLogger(opts.Logger),
	)
	if err != nil {
		store.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start manager", err)
	}
	return &session{store: store, mgr: mgr, logger: opts.Logger}, nil
}

// Close stops every job, then closes the store.
func (s *session) Close() error {
	if err := s.mgr.Close(); err != nil {
		s.logger.Error("error closing manager", "error", err)
	}
	return s.store.Close()
}

func importFile(ctx context.Context, store *sqlitedoc.Store, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return store.ImportYAML(ctx, f)
}

// buildCheckers returns the configured builtins followed by the schema
// checker, if one is configured.
func buildCheckers(cfg *config.Config) ([]checker.Checker, error) {
	checkers, err := checker.Builtins(cfg.Checkers, cfg.ContainerKinds)
	if err != nil {
		return nil, err
	}
	if cfg.Schema != "" {
		schema, err := cuecheck.Load(cfg.Schema)
		if err != nil {
			return nil, err
		}
		checkers = append(checkers, schema)
	}
	return checkers, nil
}

// createError maps CreateJob failures onto exit errors.
func createError(err error) error {
	code := engine.CodeOf(err)
	switch {
	case code != "":
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to create job (%s)", code), err)
	case errors.Is(err, engine.ErrUnknownChecker):
		return WrapExitError(ExitCommandError, "failed to create job", err)
	}
	return WrapExitError(ExitFailure, "failed to create job", err)
}
