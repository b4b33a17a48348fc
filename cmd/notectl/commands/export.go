package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	var outputPath string
	var dateStamped bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export active notes as JSON",
		Long:  "Export the active note collection as a JSON array, to stdout or a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			notes, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := notes.ExportAll()
			if err != nil {
				return fmt.Errorf("failed to export notes: %w", err)
			}

			path := outputPath
			if path == "" && dateStamped {
				path = "talknotes_" + time.Now().UTC().Format("2006-01-02") + ".json"
			}
			if path == "" {
				fmt.Println(string(data))
				return nil
			}

			if err := os.WriteFile(path, data, 0o600); err != nil {
				return fmt.Errorf("failed to write export file: %w", err)
			}
			fmt.Printf("Exported notes to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().BoolVar(&dateStamped, "date-stamped", false, "Write to a talknotes_YYYY-MM-DD.json file")

	return cmd
}
