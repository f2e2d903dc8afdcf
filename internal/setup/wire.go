package setup

import (
	"log/slog"

	"github.com/cochaviz/grubctl/internal/backup"
	"github.com/cochaviz/grubctl/internal/config"
	"github.com/cochaviz/grubctl/internal/executor"
	"github.com/cochaviz/grubctl/internal/facade"
	"github.com/cochaviz/grubctl/internal/logging"
	"github.com/cochaviz/grubctl/internal/services"
)

// NewFacade wires the full engine for the given paths.
func NewFacade(paths Paths, logger *slog.Logger) *facade.Facade {
	logger = logging.Ensure(logger)

	exec := executor.New(logger.With("component", "executor"))
	if paths.CommandTimeout > 0 {
		exec.Timeout = paths.CommandTimeout
	}

	service := &services.GrubService{
		Logger:       logger.With("component", "service"),
		DefaultsPath: paths.DefaultsPath,
		MenuPaths:    paths.MenuPaths,
		StateDir:     paths.StateDir,
		RegenArgv:    paths.RegenArgv,
		HookPath:     paths.HookPath,
		Backups: &backup.Manager{
			Logger:     logger.With("component", "backup"),
			SourcePath: paths.DefaultsPath,
			Dir:        paths.BackupDir,
			Retain:     paths.Retain,
		},
		Executor: exec,
		Hidden:   &config.HiddenStore{Path: paths.HiddenStorePath},
	}

	return facade.New(service, logger)
}
