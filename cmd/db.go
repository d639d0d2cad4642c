package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/storage"
)

// dbCmd groups database maintenance commands.
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Check, back up and restore the database",
	Long: `Maintenance commands for the local allocation database.

Examples:
  timegrid db check
  timegrid db backup
  timegrid db restore ~/.local/share/timegrid/backups/db-backup-20240101-120000.bak`,
}

var dbCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the database for unreadable values",
	Args:  cobra.NoArgs,
	RunE:  runDBCheck,
}

var dbBackupFlagDir string

var dbBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a full backup of the database",
	Args:  cobra.NoArgs,
	RunE:  runDBBackup,
}

var dbRestoreCmd = &cobra.Command{
	Use:   "restore FILE",
	Short: "Load a backup into the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runDBRestore,
}

func init() {
	dbBackupCmd.Flags().StringVar(&dbBackupFlagDir, "dir", "", "Backup directory (default: next to the database)")
	dbCmd.AddCommand(dbCheckCmd, dbBackupCmd, dbRestoreCmd)
	rootCmd.AddCommand(dbCmd)
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	status := storage.CheckDatabaseIntegrity(ctx.DB)
	if ctx.IsJSON() {
		if err := ctx.Formatter.JSON(status); err != nil {
			return err
		}
	} else {
		f := ctx.CLIFormatter()
		if status.Healthy {
			f.Success(fmt.Sprintf("Database is healthy (%d values checked)", status.Checked))
		} else {
			f.Error(fmt.Sprintf("Database has %d unreadable values", status.ErrorCount))
			for _, e := range status.Errors {
				f.Muted("  " + e)
			}
			if status.Recoverable {
				f.Warning("Restore a backup with 'timegrid db restore FILE'")
			}
		}
	}
	if !status.Healthy {
		return errors.WithCategory(errors.ErrDatabaseCorrupt, errors.CategorySystem)
	}
	return nil
}

func runDBBackup(cmd *cobra.Command, args []string) error {
	dir := dbBackupFlagDir
	if dir == "" {
		if ctx.DB.Path() == "" {
			return errors.NewUserError("In-memory databases cannot be backed up without a directory",
				"Pass --dir")
		}
		dir = storage.DefaultBackupDir(ctx.DB.Path())
	}
	path, err := storage.CreateBackup(ctx.DB, dir)
	if err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]string{"status": "ok", "path": path})
	}
	ctx.CLIFormatter().Success("Backup written to " + path)
	return nil
}

func runDBRestore(cmd *cobra.Command, args []string) error {
	if err := storage.RestoreBackup(ctx.DB, args[0]); err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]string{"status": "ok", "path": args[0]})
	}
	ctx.CLIFormatter().Success("Backup restored from " + args[0])
	return nil
}
