package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/errors"
)

var featureCmd = &cobra.Command{
	Use:   "feature",
	Short: "Manage feature lifecycles",
}

var featureStartCmd = &cobra.Command{
	Use:   "start <feature>",
	Short: "Start a feature pipeline",
	Long: `Create the agent mailbox structure and a dedicated git worktree for
the feature, and move it to in-progress.`,
	Args: cobra.ExactArgs(1),
	RunE: runFeatureStart,
}

var featureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List feature worktrees",
	RunE:  runFeatureList,
}

var featureReadyCmd = &cobra.Command{
	Use:   "ready <feature>",
	Short: "Mark a feature ready for review",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeatureReady,
}

var featureReviseCmd = &cobra.Command{
	Use:   "revise <feature> <agent> <prompt>",
	Short: "Request a revision from an agent",
	Long: `Send a ready feature back to in-progress and queue a revision prompt
for the agent, threaded into its existing conversation.`,
	Args: cobra.ExactArgs(3),
	RunE: runFeatureRevise,
}

var featureAcceptCmd = &cobra.Command{
	Use:   "accept <feature>",
	Short: "Merge a feature branch and mark it completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeatureAccept,
}

var featureDropCmd = &cobra.Command{
	Use:   "drop <feature>",
	Short: "Drop a feature and remove its worktree",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeatureDrop,
}

var (
	featureBaseBranch     string
	featureTargetBranch   string
	featureDropReason     string
	featureReviseRevision int
)

func init() {
	featureStartCmd.Flags().StringVar(&featureBaseBranch, "base", "main", "branch to fork the feature from")
	featureAcceptCmd.Flags().StringVar(&featureTargetBranch, "target", "main", "branch to merge the feature into")
	featureDropCmd.Flags().StringVar(&featureDropReason, "reason", "", "why the feature is being dropped")
	featureReviseCmd.Flags().IntVar(&featureReviseRevision, "revision", 1, "revision number")

	featureCmd.AddCommand(featureStartCmd)
	featureCmd.AddCommand(featureListCmd)
	featureCmd.AddCommand(featureReadyCmd)
	featureCmd.AddCommand(featureReviseCmd)
	featureCmd.AddCommand(featureAcceptCmd)
	featureCmd.AddCommand(featureDropCmd)
	rootCmd.AddCommand(featureCmd)
}

func runFeatureStart(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer rt.close()

	fs, err := rt.orch.StartFeature(cmd.Context(), args[0], featureBaseBranch)
	if err != nil {
		return err
	}

	fmt.Printf("Feature %s started (%s)\n", fs.FeatureName, renderStatus(fs.Status))
	return nil
}

func runFeatureList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer rt.close()

	worktrees, err := rt.worktrees.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(worktrees) == 0 {
		fmt.Println("No feature worktrees.")
		return nil
	}

	fmt.Println(headerStyle.Render("Worktrees"))
	for _, info := range worktrees {
		fmt.Printf("  %s  %s  %s\n", info.FeatureID, info.Branch, dimStyle.Render(info.Path))
	}
	return nil
}

func runFeatureReady(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer rt.close()

	fs, err := rt.orch.MarkReady(args[0], "Marked ready for review")
	if err != nil {
		return err
	}

	fmt.Printf("Feature %s is %s\n", fs.FeatureName, renderStatus(fs.Status))
	return nil
}

func runFeatureRevise(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer rt.close()

	fs, path, err := rt.orch.RequestRevision(args[0], args[1], args[2], featureReviseRevision)
	if err != nil {
		return err
	}

	fmt.Printf("Feature %s is %s, revision prompt queued: %s\n", fs.FeatureName, renderStatus(fs.Status), path)
	return nil
}

func runFeatureAccept(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer rt.close()

	fs, err := rt.orch.AcceptFeature(cmd.Context(), args[0], featureTargetBranch)
	if errors.Is(err, errors.ErrMergeConflict) {
		fmt.Printf("Merge conflict: feature %s moved to %s\n", args[0], renderStatus(fs.Status))
		fmt.Println("Resolve the conflict and run accept again, or drop the feature.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Feature %s merged as %s (%s)\n", fs.FeatureName, fs.MergeCommit, renderStatus(fs.Status))
	return nil
}

func runFeatureDrop(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer rt.close()

	fs, err := rt.orch.DropFeature(cmd.Context(), args[0], featureDropReason)
	if err != nil {
		return err
	}

	fmt.Printf("Feature %s dropped (%s)\n", fs.FeatureName, renderStatus(fs.Status))
	return nil
}
