// Package git provides shared utilities for git CLI operations.
package git

import (
	"context"
	"os/exec"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/weftlabs/weft/internal/errors"
)

// Pool limits concurrent git CLI operations using a weighted semaphore.
// All git exec calls across the worktree manager and patch applier go
// through a shared Pool to prevent resource exhaustion when multiple
// workers run git operations simultaneously.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a Pool that allows at most limit concurrent git operations.
func NewPool(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit))}
}

// Acquire claims a slot, runs fn, and releases the slot.
// Blocks if all slots are busy. Returns ctx.Err() if the context
// is cancelled while waiting for a slot.
// If the pool is nil, fn is executed directly without concurrency control.
func (p *Pool) Acquire(ctx context.Context, fn func() error) error {
	if p == nil || p.sem == nil {
		return fn()
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

// Run executes a git command in dir and returns its trimmed stdout.
// A non-zero exit is translated into a GitError carrying the command's
// combined output so callers can inspect git's message.
func (p *Pool) Run(ctx context.Context, dir string, args ...string) (string, error) {
	var out string
	err := p.Acquire(ctx, func() error {
		cmd := exec.CommandContext(ctx, "git", args...)
		cmd.Dir = dir

		output, err := cmd.CombinedOutput()
		if err != nil {
			return errors.NewGitError("git "+strings.Join(args, " "), err).
				WithRepo(dir).
				WithOutput(strings.TrimSpace(string(output)))
		}
		out = strings.TrimSpace(string(output))
		return nil
	})
	return out, err
}

// IsRepository reports whether dir is inside a git working tree.
func (p *Pool) IsRepository(ctx context.Context, dir string) bool {
	out, err := p.Run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}
