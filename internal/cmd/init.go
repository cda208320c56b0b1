package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the AI history repository",
	Long: `Initialize the AI history repository that holds agent mailboxes,
feature state records, and prompt/result archives. The directory is
created and turned into a git repository if it is not one already.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.repo.Init(cmd.Context()); err != nil {
		return fmt.Errorf("failed to initialize history repository: %w", err)
	}

	fmt.Printf("History repository initialized at %s\n", rt.repo.Path())
	return nil
}
