// Package worktree manages one isolated git worktree and branch per
// feature inside a shared repository.
package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/weftlabs/weft/internal/errors"
	"github.com/weftlabs/weft/internal/git"
)

// BranchPrefix is the naming convention for feature branches.
const BranchPrefix = "feature/"

// Info describes one feature worktree.
type Info struct {
	Path      string
	Branch    string
	FeatureID string
	CreatedAt time.Time
}

// Status is the working-tree state of a worktree, recomputed on demand.
type Status struct {
	IsClean        bool
	ModifiedFiles  []string
	UntrackedFiles []string
	CurrentBranch  string
}

// Manager creates, inspects, and removes feature worktrees.
type Manager struct {
	repoPath string
	dir      string
	pool     *git.Pool
}

// Option configures a Manager.
type Option func(*Manager)

// WithDir overrides the default worktrees/ directory inside the
// repository as the location new worktrees are created under.
func WithDir(dir string) Option {
	return func(m *Manager) {
		if dir != "" {
			m.dir = dir
		}
	}
}

// New creates a Manager rooted at repoPath. Fails if repoPath is not
// inside a git working tree.
func New(ctx context.Context, repoPath string, pool *git.Pool, opts ...Option) (*Manager, error) {
	if !pool.IsRepository(ctx, repoPath) {
		return nil, errors.Wrap(errors.ErrNotGitRepository, repoPath)
	}
	m := &Manager{
		repoPath: repoPath,
		dir:      filepath.Join(repoPath, "worktrees"),
		pool:     pool,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Path returns the deterministic worktree location for a feature.
func (m *Manager) Path(featureID string) string {
	return filepath.Join(m.dir, featureID)
}

// BranchName returns the branch name for a feature.
func BranchName(featureID string) string {
	return BranchPrefix + featureID
}

// Create makes a new branch feature/<id> off baseBranch and checks out a
// worktree for it. A partially created worktree directory is removed
// before the error is returned.
func (m *Manager) Create(ctx context.Context, featureID, baseBranch string) (string, error) {
	path := m.Path(featureID)
	if _, err := os.Stat(path); err == nil {
		return "", errors.Wrap(errors.ErrWorktreeExists, path)
	}

	branch := BranchName(featureID)
	_, err := m.pool.Run(ctx, m.repoPath, "worktree", "add", "-b", branch, path, baseBranch)
	if err != nil {
		// Clean up whatever the failed add left behind.
		_ = os.RemoveAll(path)
		_, _ = m.pool.Run(ctx, m.repoPath, "worktree", "prune")
		return "", translateCreateError(err, branch, baseBranch)
	}

	return path, nil
}

// translateCreateError maps git's message to a domain error so callers
// can tell an existing branch apart from a missing base branch.
func translateCreateError(err error, branch, baseBranch string) error {
	var gitErr *errors.GitError
	if !errors.As(err, &gitErr) {
		return err
	}

	out := gitErr.Output
	switch {
	case strings.Contains(out, "already exists"):
		return errors.NewGitError(fmt.Sprintf("branch %s already exists", branch), errors.ErrBranchExists).
			WithBranch(branch).
			WithOutput(out)
	case strings.Contains(out, "not a valid"),
		strings.Contains(out, "unknown revision"),
		strings.Contains(out, "invalid reference"):
		return errors.NewGitError(fmt.Sprintf("base branch %s not found", baseBranch), errors.ErrBranchNotFound).
			WithBranch(baseBranch).
			WithOutput(out)
	}
	return err
}

// List enumerates all worktrees on feature branches, ordered as git
// reports them.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	out, err := m.pool.Run(ctx, m.repoPath, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	var infos []Info
	var current Info
	flush := func() {
		if current.Path == "" || !strings.HasPrefix(current.Branch, BranchPrefix) {
			current = Info{}
			return
		}
		current.FeatureID = strings.TrimPrefix(current.Branch, BranchPrefix)
		current.CreatedAt = time.Now().UTC()
		if fi, err := os.Stat(current.Path); err == nil {
			current.CreatedAt = fi.ModTime().UTC()
		}
		infos = append(infos, current)
		current = Info{}
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "worktree "):
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "branch "):
			ref := strings.TrimPrefix(line, "branch ")
			current.Branch = strings.TrimPrefix(ref, "refs/heads/")
		}
	}
	flush()

	return infos, nil
}

// Status derives the current branch and modified/untracked paths from
// git status. IsClean is true iff both lists are empty.
func (m *Manager) Status(ctx context.Context, worktreePath string) (*Status, error) {
	if _, err := os.Stat(worktreePath); err != nil {
		return nil, errors.Wrap(errors.ErrWorktreeNotFound, worktreePath)
	}

	branch, err := m.pool.Run(ctx, worktreePath, "branch", "--show-current")
	if err != nil {
		return nil, err
	}

	out, err := m.pool.Run(ctx, worktreePath, "status", "--porcelain")
	if err != nil {
		return nil, err
	}

	status := &Status{CurrentBranch: branch}
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 3 {
			continue
		}
		// The trimmed output loses the leading space of the first
		// status line, so recover the path by stripping whatever is
		// left of the two-character code instead of slicing at a
		// fixed offset.
		path := strings.TrimLeft(line[2:], " ")
		if path == "" {
			continue
		}
		if strings.HasPrefix(line, "??") {
			status.UntrackedFiles = append(status.UntrackedFiles, path)
		} else {
			status.ModifiedFiles = append(status.ModifiedFiles, path)
		}
	}
	status.IsClean = len(status.ModifiedFiles) == 0 && len(status.UntrackedFiles) == 0

	return status, nil
}

// Remove forcibly removes a feature's worktree and, if deleteBranch is
// set, its branch. The two operations are independent; Remove reports
// success if either one succeeded so a retried cleanup is never blocked
// by a previous partial attempt.
func (m *Manager) Remove(ctx context.Context, featureID string, deleteBranch bool) bool {
	path := m.Path(featureID)

	_, wtErr := m.pool.Run(ctx, m.repoPath, "worktree", "remove", "--force", path)
	if wtErr != nil {
		_ = os.RemoveAll(path)
		_, _ = m.pool.Run(ctx, m.repoPath, "worktree", "prune")
	}

	branchOK := true
	if deleteBranch {
		_, brErr := m.pool.Run(ctx, m.repoPath, "branch", "-D", BranchName(featureID))
		branchOK = brErr == nil
	}

	return wtErr == nil || branchOK
}

// CommitAll stages everything in the worktree and commits it. Returns
// the new commit hash, or empty string if there was nothing to commit.
func (m *Manager) CommitAll(ctx context.Context, worktreePath, message string) (string, error) {
	if _, err := m.pool.Run(ctx, worktreePath, "add", "-A"); err != nil {
		return "", err
	}

	staged, err := m.pool.Run(ctx, worktreePath, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	if staged == "" {
		return "", nil
	}

	if _, err := m.pool.Run(ctx, worktreePath, "commit", "-m", message); err != nil {
		return "", err
	}
	return m.pool.Run(ctx, worktreePath, "rev-parse", "HEAD")
}

// Merge merges a feature's branch into targetBranch with a merge commit.
// Returns the merge commit hash on success. A conflicted merge is
// aborted and reported as ErrMergeConflict carrying git's output.
func (m *Manager) Merge(ctx context.Context, featureID, targetBranch string) (string, error) {
	branch := BranchName(featureID)

	if _, err := m.pool.Run(ctx, m.repoPath, "checkout", targetBranch); err != nil {
		return "", err
	}

	_, mergeErr := m.pool.Run(ctx, m.repoPath, "merge", "--no-ff", branch,
		"-m", fmt.Sprintf("Merge %s into %s", branch, targetBranch))
	if mergeErr != nil {
		var gitErr *errors.GitError
		if errors.As(mergeErr, &gitErr) && strings.Contains(gitErr.Output, "CONFLICT") {
			_, _ = m.pool.Run(ctx, m.repoPath, "merge", "--abort")
			return "", errors.NewGitError("merge conflict", errors.ErrMergeConflict).
				WithBranch(branch).
				WithOutput(gitErr.Output)
		}
		return "", mergeErr
	}

	return m.pool.Run(ctx, m.repoPath, "rev-parse", "HEAD")
}
