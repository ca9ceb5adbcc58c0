package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backupRetentionDays int

// backupCmd snapshots the history database
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the history database and rotate old snapshots",
	RunE:  runBackup,
}

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.Flags().IntVar(&backupRetentionDays, "retention-days", 30, "Delete snapshots older than this many days (0 keeps all)")
}

func runBackup(cmd *cobra.Command, args []string) error {
	// Backups never need a price source
	offline = true

	sess, err := setup(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	svc := sess.container.BackupService
	backup, err := svc.CreateBackup(sess.ctx)
	if err != nil {
		return err
	}
	deleted, err := svc.RotateOldBackups(backupRetentionDays)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backup written to %s (%d bytes, %s)\n", backup.Path, backup.SizeBytes, backup.Checksum)
	if deleted > 0 {
		fmt.Fprintf(out, "Deleted %d old backups\n", deleted)
	}
	return nil
}
