package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/talknote/talknote/cmd/notectl/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "notectl",
		Short: "Administration tool for the TalkNote API",
		Long:  "CLI tool for exporting, importing and inspecting the note store",
	}

	rootCmd.AddCommand(commands.NewExportCmd())
	rootCmd.AddCommand(commands.NewImportCmd())
	rootCmd.AddCommand(commands.NewListCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
