package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/weftlabs/weft/internal/agent"
	"github.com/weftlabs/weft/internal/ai"
	"github.com/weftlabs/weft/internal/errors"
)

var watchCmd = &cobra.Command{
	Use:   "watch [feature]",
	Short: "Run agent workers",
	Long: `Start one worker per agent. Each worker polls its inbox, sends
prompts to the AI backend, writes hash-verified results, and applies any
code patches to the feature worktree. With a feature argument only that
feature is served; without one, every active feature under the history
root is picked up, including features started while watching. Runs until
interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var watchAgents []string

func init() {
	watchCmd.Flags().StringSliceVar(&watchAgents, "agent", nil, "limit to specific agent ids (default: all)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.close()

	backend, err := ai.NewFromConfig(&rt.cfg.AI, rt.logger)
	if err != nil {
		return err
	}

	defs, err := watchDefinitions()
	if err != nil {
		return err
	}

	workerOpts := func(featureID string) []agent.WorkerOption {
		worktreePath := rt.worktrees.Path(featureID)
		if _, statErr := os.Stat(worktreePath); statErr != nil {
			rt.logger.WithFeature(featureID).Warn("no worktree found, patches will not be applied",
				"path", worktreePath)
			return nil
		}
		return []agent.WorkerOption{agent.WithWorktree(worktreePath, rt.pool)}
	}
	pollInterval := rt.cfg.Runtime.PollInterval()

	info := backend.ModelInfo()

	if len(args) == 1 {
		featureID := args[0]
		fmt.Printf("Watching feature %s with %d agents (%s/%s)\n",
			featureID, len(defs), info.Provider, info.Model)

		opts := append([]agent.WorkerOption{agent.WithPollInterval(pollInterval)}, workerOpts(featureID)...)
		g, ctx := errgroup.WithContext(ctx)
		for _, def := range defs {
			worker := agent.NewWorker(def, featureID, rt.orch.Queue(), backend, rt.logger, opts...)
			g.Go(func() error {
				return worker.Run(ctx)
			})
		}
		err = g.Wait()
	} else {
		fmt.Printf("Watching all features under %s with %d agents (%s/%s)\n",
			rt.repo.Path(), len(defs), info.Provider, info.Model)

		sup := agent.NewSupervisor(defs, rt.repo, backend, rt.logger, pollInterval, workerOpts)
		err = sup.Run(ctx)
	}

	if errors.Is(err, context.Canceled) {
		fmt.Println("Stopped.")
		return nil
	}
	return err
}

// watchDefinitions resolves the --agent filter against the known agents.
func watchDefinitions() ([]agent.Definition, error) {
	if len(watchAgents) == 0 {
		return agent.ExecutionOrder(), nil
	}

	var defs []agent.Definition
	for _, id := range watchAgents {
		def, err := agent.Lookup(id)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
