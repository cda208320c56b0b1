package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/errors"
	"github.com/weftlabs/weft/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status [feature]",
	Short: "Show feature status",
	Long: `Display the lifecycle status of all features, or the full transition
history of a single feature.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	statusStyles = map[state.Status]lipgloss.Style{
		state.StatusDraft:         dimStyle,
		state.StatusInProgress:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		state.StatusReady:         lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		state.StatusMergeConflict: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		state.StatusCompleted:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		state.StatusDropped:       dimStyle,
	}
)

func renderStatus(s state.Status) string {
	if style, ok := statusStyles[s]; ok {
		return style.Render(string(s))
	}
	return string(s)
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer rt.close()

	if len(args) == 1 {
		return printFeatureStatus(rt, args[0])
	}

	features, err := rt.repo.Features(cmd.Context())
	if err != nil {
		if errors.IsNotFound(err) {
			fmt.Println("No history repository found. Run 'weft init' first.")
			return nil
		}
		return err
	}
	if len(features) == 0 {
		fmt.Println("No features yet.")
		return nil
	}

	fmt.Println(headerStyle.Render("Features"))
	for _, name := range features {
		fs, err := state.Load(state.Path(rt.repo.Path(), name))
		if err != nil {
			fmt.Printf("  %s  %s\n", name, dimStyle.Render("(no state record)"))
			continue
		}
		fmt.Printf("  %s  %s\n", name, renderStatus(fs.Status))
	}
	return nil
}

func printFeatureStatus(rt *runtime, featureID string) error {
	fs, err := state.Load(state.Path(rt.repo.Path(), featureID))
	if err != nil {
		return err
	}

	fmt.Printf("Feature: %s\n", headerStyle.Render(fs.FeatureName))
	fmt.Printf("Status:  %s\n", renderStatus(fs.Status))
	fmt.Printf("Created: %s\n", fs.CreatedAt.Format("2006-01-02 15:04:05"))
	if fs.MergeCommit != "" {
		fmt.Printf("Merged:  %s\n", fs.MergeCommit)
	}
	if fs.MergeError != "" {
		fmt.Printf("Merge error: %s\n", fs.MergeError)
	}
	if fs.DropReason != "" {
		fmt.Printf("Dropped: %s\n", fs.DropReason)
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("Transitions"))
	for _, tr := range fs.Transitions {
		from := string(tr.From)
		if from == "" {
			from = "-"
		}
		fmt.Printf("  %s  %s -> %s", tr.Timestamp.Format("2006-01-02 15:04:05"), from, tr.To)
		if tr.Reason != "" {
			fmt.Printf("  %s", dimStyle.Render(tr.Reason))
		}
		fmt.Println()
	}
	return nil
}
