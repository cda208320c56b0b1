package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/internal/git"
	"github.com/weftlabs/weft/internal/history"
	"github.com/weftlabs/weft/internal/logging"
	"github.com/weftlabs/weft/internal/orchestrator"
	"github.com/weftlabs/weft/internal/worktree"
)

// runtime bundles the long-lived pieces most commands need.
type runtime struct {
	cfg       *config.Config
	logger    *logging.Logger
	pool      *git.Pool
	repo      *history.Repo
	worktrees *worktree.Manager
	orch      *orchestrator.Orchestrator
}

// newRuntime wires config, logging, the git pool, and the history repo.
// The orchestrator gets a worktree manager only when withWorktrees is
// set, so queue-only commands work outside a git checkout.
func newRuntime(ctx context.Context, withWorktrees bool) (*runtime, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg := config.Get()

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	pool := git.NewPool(cfg.Runtime.GitConcurrency)
	repo := history.New(cfg.Paths.ResolveAIHistory(cwd), pool)

	var worktrees *worktree.Manager
	if withWorktrees {
		worktrees, err = worktree.New(ctx, cfg.Paths.ResolveCodeRepo(cwd), pool,
			worktree.WithDir(cfg.Paths.ResolveWorktreeDir(cwd)))
		if err != nil {
			logger.Close()
			return nil, err
		}
	}

	return &runtime{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		repo:      repo,
		worktrees: worktrees,
		orch:      orchestrator.New(repo, worktrees, logger),
	}, nil
}

func (r *runtime) close() {
	if r.logger != nil {
		r.logger.Close()
	}
}
