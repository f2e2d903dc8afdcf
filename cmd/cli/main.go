package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/cochaviz/grubctl/internal/facade"
	"github.com/cochaviz/grubctl/internal/logging"
	"github.com/cochaviz/grubctl/internal/models"
	"github.com/cochaviz/grubctl/internal/setup"
)

const defaultLogLevel = "warning"

func main() {
	var levelVar slog.LevelVar
	levelVar.Set(slog.LevelWarn)

	router := logging.NewRouter(logging.NewCLI(os.Stderr, &levelVar).Handler())
	logger := slog.New(router)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(logger, router, &levelVar)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("command interrupted", "error", err)
			os.Exit(130)
		}
		logger.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand(logger *slog.Logger, router *logging.Router, levelVar *slog.LevelVar) *cobra.Command {
	setup.SetLogger(logger.With("component", "setup"))

	logLevel := defaultLogLevel
	jsonLogs := false

	root := &cobra.Command{
		Use:           "grubctl",
		Short:         "Safely edit the GRUB bootloader configuration",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	root.PersistentFlags().BoolVar(&jsonLogs, "log-json", false, "Emit logs as JSON")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := parseLogLevel(logLevel)
		if err != nil {
			return err
		}
		if levelVar != nil {
			levelVar.Set(level)
		}
		if jsonLogs && router != nil {
			router.Swap(logging.NewJSON(os.Stderr, levelVar).Handler())
		}
		return nil
	}

	root.AddCommand(
		newConfigCommand(logger),
		newEntriesCommand(logger),
		newBackupCommand(logger),
	)
	return root
}

// openFacade wires the engine and loads the current state. Every leaf
// command starts here.
func openFacade(logger *slog.Logger) (*facade.Facade, error) {
	paths, err := setup.LoadPaths()
	if err != nil {
		return nil, err
	}
	if err := setup.Verify(paths); err != nil {
		return nil, err
	}

	f := setup.NewFacade(paths, logger)
	if err := f.Load(); err != nil {
		return nil, err
	}
	for _, warning := range f.Warnings() {
		logger.Warn(warning)
	}
	return f, nil
}

func reportResult(cmd *cobra.Command, result models.OperationResult) error {
	if result.Success {
		fmt.Fprintln(cmd.OutOrStdout(), result.Message)
		if result.Detail != "" {
			fmt.Fprintln(cmd.OutOrStdout(), result.Detail)
		}
		return nil
	}
	if result.Detail != "" {
		return fmt.Errorf("%s: %s", result.Message, result.Detail)
	}
	return errors.New(result.Message)
}

func newConfigCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit bootloader settings",
	}

	cmd.AddCommand(
		newConfigShowCommand(logger),
		newConfigSetCommand(logger),
		newConfigPreviewCommand(logger),
		newConfigApplyCommand(logger),
	)
	return cmd
}

func newConfigShowCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current settings and any staged changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade(logger.With("command", "config.show"))
			if err != nil {
				return err
			}

			settings, err := f.Settings()
			if err != nil {
				return err
			}
			for _, setting := range settings {
				name := setting.Field
				if name == "" {
					name = setting.Key
				}
				value := setting.Value
				if value == "" {
					value = "(unset)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", name, value)
				if setting.Pending {
					staged := setting.Staged
					if staged == "" {
						staged = "(removed)"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-16s   staged: %s\n", "", staged)
				}
			}
			return nil
		},
	}
}

func newConfigSetCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "set <field> <value>",
		Args:  cobra.ExactArgs(2),
		Short: "Validate and stage a new value for a setting",
		Long: "Validate and stage a new value for a setting. An empty value removes\n" +
			"the setting. Fields: " + strings.Join(facade.FieldNames(), ", ") + ".",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade(logger.With("command", "config.set"))
			if err != nil {
				return err
			}
			return reportResult(cmd, f.Set(args[0], args[1]))
		},
	}
}

func newConfigPreviewCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Show the file changes an apply would make",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade(logger.With("command", "config.preview"))
			if err != nil {
				return err
			}
			diff, err := f.Preview()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), diff)
			return nil
		},
	}
}

func newConfigApplyCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Write the staged settings and regenerate the boot menu",
		Long: "Write the staged settings and regenerate the boot menu. The previous\n" +
			"configuration is backed up first; authentication is requested once for\n" +
			"the whole operation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade(logger.With("command", "config.apply"))
			if err != nil {
				return err
			}
			return reportResult(cmd, f.Apply(cmd.Context()))
		},
	}
}

func newEntriesCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List, hide and show boot menu entries",
	}

	cmd.AddCommand(
		newEntriesListCommand(logger),
		newEntriesHideCommand(logger),
		newEntriesShowCommand(logger),
	)
	return cmd
}

func newEntriesListCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List boot menu entries with their identifiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade(logger.With("command", "entries.list"))
			if err != nil {
				return err
			}

			entries, err := f.Entries()
			if err != nil {
				return err
			}
			for _, entry := range entries {
				flags := ""
				if entry.Submenu {
					flags += " (submenu)"
				}
				if entry.Hidden {
					flags += " (hidden)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-48s %s%s\n", entry.ID, entry.Title, flags)
			}
			return nil
		},
	}
}

func newEntriesHideCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "hide <entry-id>",
		Args:  cobra.ExactArgs(1),
		Short: "Hide a menu entry, persistently across menu regenerations",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade(logger.With("command", "entries.hide"))
			if err != nil {
				return err
			}
			return reportResult(cmd, f.Hide(cmd.Context(), args[0]))
		},
	}
}

func newEntriesShowCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "show <entry-id>",
		Args:  cobra.ExactArgs(1),
		Short: "Make a hidden menu entry visible again",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade(logger.With("command", "entries.show"))
			if err != nil {
				return err
			}
			return reportResult(cmd, f.Show(cmd.Context(), args[0]))
		},
	}
}

func newBackupCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "List, verify and restore configuration backups",
	}

	cmd.AddCommand(
		newBackupListCommand(logger),
		newBackupVerifyCommand(logger),
		newBackupRestoreCommand(logger),
	)
	return cmd
}

func newBackupListCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configuration backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade(logger.With("command", "backup.list"))
			if err != nil {
				return err
			}

			backups, err := f.Backups()
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no backups")
				return nil
			}
			for _, record := range backups {
				status := "ok"
				if !record.Valid {
					status = "CORRUPTED"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-10s %-10s %s ago\n",
					record.ID,
					units.HumanSize(float64(record.SizeBytes)),
					status,
					units.HumanDuration(time.Since(record.CreatedAt)),
				)
			}
			return nil
		},
	}
}

func newBackupVerifyCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <backup-id>",
		Args:  cobra.ExactArgs(1),
		Short: "Check a backup against its recorded checksum",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade(logger.With("command", "backup.verify"))
			if err != nil {
				return err
			}
			return reportResult(cmd, f.VerifyBackup(args[0]))
		},
	}
}

func newBackupRestoreCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-id>",
		Args:  cobra.ExactArgs(1),
		Short: "Replace the live configuration with a backup",
		Long: "Replace the live configuration with a backup and regenerate the boot\n" +
			"menu. The state before the restore is backed up first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade(logger.With("command", "backup.restore"))
			if err != nil {
				return err
			}
			return reportResult(cmd, f.Restore(cmd.Context(), args[0]))
		},
	}
}

func parseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", value)
	}
}
