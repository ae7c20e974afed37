package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup <path>",
	Short: "Archive a single file or directory entry",
	Long: `Archive a single file through the backup pipeline: stat, skip-if-seen,
chunk, dedup-filter, upload missing blocks, send the file record.

Examples:
  cdpfglclient backup /var/log/app.log
  cdpfglclient backup --host db01 /data/snapshot.tar`,
	Args: cobra.ExactArgs(1),
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	skipped, err := p.ArchivePath(args[0])
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	if skipped {
		fmt.Printf("unchanged, skipped: %s\n", args[0])
	} else {
		fmt.Printf("archived: %s\n", args[0])
	}
	return nil
}
