package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/agent"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the agent pipeline",
	Long:  `Show all agents in pipeline execution order, grouped by stage.`,
	RunE:  runAgents,
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

func runAgents(cmd *cobra.Command, args []string) error {
	var stage string
	for _, def := range agent.ExecutionOrder() {
		if def.Stage != stage {
			stage = def.Stage
			fmt.Println(headerStyle.Render(stage))
		}
		fmt.Printf("  %s  %s  %s\n", def.ID, def.Name, dimStyle.Render(def.Description))
	}
	return nil
}
