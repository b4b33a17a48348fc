package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/talknote/talknote/internal/store"
)

// NewImportCmd creates the import command
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import notes from a JSON export",
		Long:  "Replace the active note collection with the notes in a JSON export file. Trash is left untouched.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read import file: %w", err)
			}

			ctx := context.Background()

			notes, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := notes.ImportAll(ctx, data); err != nil {
				if errors.Is(err, store.ErrMalformedImport) {
					return fmt.Errorf("%s is not a JSON array of notes", args[0])
				}
				return fmt.Errorf("failed to import notes: %w", err)
			}

			active, _ := notes.Counts()
			fmt.Printf("Imported %d notes from %s\n", active, args[0])
			return nil
		},
	}

	return cmd
}
