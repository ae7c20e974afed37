package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cdpfgl/cdpfgl-go/internal/cli/output"
	"github.com/cdpfgl/cdpfgl-go/internal/cli/timeutil"
	"github.com/cdpfgl/cdpfgl-go/pkg/client"
)

var (
	listFilename   string
	listOwner      string
	listGroup      string
	listLatestOnly bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived file records",
	Long: `List file records stored on the server for this client's host.

Examples:
  cdpfglclient list
  cdpfglclient list --filename app.log --latest-only
  cdpfglclient list -o json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listFilename, "filename", "", "Filter by filename (case-insensitive substring match)")
	listCmd.Flags().StringVar(&listOwner, "owner", "", "Filter by owner")
	listCmd.Flags().StringVar(&listGroup, "group", "", "Filter by group")
	listCmd.Flags().BoolVar(&listLatestOnly, "latest-only", false, "Return only the newest record per path")
}

// recordList adapts []client.FileRecord to output.TableRenderer.
type recordList []client.FileRecord

func (l recordList) Headers() []string {
	return []string{"PATH", "TYPE", "SIZE", "MTIME", "BLOCKS"}
}

func (l recordList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		rows = append(rows, []string{
			r.Path,
			typeLabel(r.Type),
			fmt.Sprintf("%d", r.Size),
			timeutil.FormatUnix(r.Mtime),
			fmt.Sprintf("%d", len(r.Hashes)),
		})
	}
	return rows
}

func typeLabel(t int) string {
	switch t {
	case 0:
		return "file"
	case 1:
		return "dir"
	case 2:
		return "symlink"
	default:
		return "other"
	}
}

func runList(cmd *cobra.Command, args []string) error {
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
		Filename:   listFilename,
		Owner:      listOwner,
		Group:      listGroup,
		LatestOnly: listLatestOnly,
	})
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	format, err := output.ParseFormat(Flags.Output)
	if err != nil {
		return err
	}
	printer := output.NewPrinter(os.Stdout, format)

	if len(records) == 0 {
		printer.Println("No records found.")
		return nil
	}
	return printer.Print(recordList(records))
}
