package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talknote/talknote/internal/models"
	"github.com/talknote/talknote/internal/store"
	"github.com/talknote/talknote/internal/validation"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	var view string
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes",
		Long:  "List notes for a view (all, favorites, trash, or a category), newest first with favorites on top",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateViewCategory(view); err != nil {
				return err
			}

			ctx := context.Background()

			notes, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			results := notes.Query(store.Filter{
				View:   models.ViewCategory(view),
				Search: search,
			})

			if len(results) == 0 {
				fmt.Println("No notes found")
				return nil
			}

			for _, note := range results {
				marker := " "
				if note.IsFavorited {
					marker = "*"
				}
				fmt.Printf("%s %s  %-10s %s  %s\n",
					marker,
					note.ID,
					note.Category,
					note.CreatedAt.Format("2006-01-02 15:04"),
					note.Title,
				)
			}
			fmt.Printf("\n%d notes\n", len(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&view, "view", "all", "View to list: all, favorites, trash, or a category name")
	cmd.Flags().StringVarP(&search, "search", "q", "", "Case-insensitive search against title and text")

	return cmd
}
