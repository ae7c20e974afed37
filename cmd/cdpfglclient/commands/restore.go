package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cdpfgl/cdpfgl-go/pkg/client"
)

var restorePath string

var restoreCmd = &cobra.Command{
	Use:   "restore <path>",
	Short: "Restore the latest archived version of a file to a local destination",
	Long: `Look up the newest record matching path under this client's host and
write its reconstructed content to --out (or path itself if omitted).

Examples:
  cdpfglclient restore /data/report.csv --out /tmp/report.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().StringVar(&restorePath, "out", "", "Destination path (default: overwrite the original path)")
}

func runRestore(cmd *cobra.Command, args []string) error {
	path := args[0]
	dest := restorePath
	if dest == "" {
		dest = path
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	records, err := p.ListRecords(client.ListFilesQuery{
		Host:       cfg.Monitor.Host,
		LatestOnly: true,
	})
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	var match *client.FileRecord
	for i := range records {
		if records[i].Path == path {
			match = &records[i]
			break
		}
	}
	if match == nil {
		return fmt.Errorf("no record found for path %q on host %q", path, cfg.Monitor.Host)
	}

	if err := p.RestoreFile(*match, dest); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	fmt.Printf("restored %s -> %s\n", path, dest)
	return nil
}
