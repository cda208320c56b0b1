// Package history manages the AI history repository: the git-tracked
// directory tree holding per-feature queues and state records.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/weftlabs/weft/internal/errors"
	"github.com/weftlabs/weft/internal/git"
)

// Repo is a handle to one history repository.
type Repo struct {
	path string
	pool *git.Pool
}

// New creates a handle without touching the filesystem.
func New(path string, pool *git.Pool) *Repo {
	return &Repo{path: path, pool: pool}
}

// Path returns the repository root.
func (r *Repo) Path() string {
	return r.path
}

// Init creates the directory if needed and initializes a git
// repository in it. Safe to call on an already initialized repository.
func (r *Repo) Init(ctx context.Context) error {
	if err := os.MkdirAll(r.path, 0o755); err != nil {
		return fmt.Errorf("history: create directory: %w", err)
	}
	if _, err := r.pool.Run(ctx, r.path, "init"); err != nil {
		return fmt.Errorf("history: git init: %w", err)
	}
	return nil
}

// Validate checks that the path exists, is a directory, and is a git
// repository.
func (r *Repo) Validate(ctx context.Context) error {
	info, err := os.Stat(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError("history repository", r.path)
		}
		return fmt.Errorf("history: stat: %w", err)
	}
	if !info.IsDir() {
		return errors.NewValidationError("history path is not a directory").
			WithValue(r.path)
	}
	if !r.pool.IsRepository(ctx, r.path) {
		return errors.Wrap(errors.ErrNotGitRepository, r.path)
	}
	return nil
}

// CreateFeatureStructure builds the mailbox tree for a feature: one
// directory per agent with in/, out/, and log/ subdirectories.
func (r *Repo) CreateFeatureStructure(ctx context.Context, featureID string, agentIDs []string) error {
	if err := r.Validate(ctx); err != nil {
		return err
	}

	for _, agentID := range agentIDs {
		agentPath := filepath.Join(r.path, featureID, agentID)
		for _, sub := range []string{"in", "out", "log"} {
			if err := os.MkdirAll(filepath.Join(agentPath, sub), 0o755); err != nil {
				return fmt.Errorf("history: create %s/%s: %w", agentID, sub, err)
			}
		}
	}
	return nil
}

// FeatureAgents returns the agent ids present under a feature,
// sorted. A directory counts as an agent only if it has the full
// in/out/log structure.
func (r *Repo) FeatureAgents(ctx context.Context, featureID string) ([]string, error) {
	if err := r.Validate(ctx); err != nil {
		return nil, err
	}

	featurePath := filepath.Join(r.path, featureID)
	entries, err := os.ReadDir(featurePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("feature", featureID)
		}
		return nil, fmt.Errorf("history: read feature directory: %w", err)
	}

	var agents []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		agentPath := filepath.Join(featurePath, entry.Name())
		complete := true
		for _, sub := range []string{"in", "out", "log"} {
			if fi, err := os.Stat(filepath.Join(agentPath, sub)); err != nil || !fi.IsDir() {
				complete = false
				break
			}
		}
		if complete {
			agents = append(agents, entry.Name())
		}
	}
	sort.Strings(agents)
	return agents, nil
}

// Features returns every feature id that has a state record or at
// least one agent mailbox, sorted.
func (r *Repo) Features(ctx context.Context) ([]string, error) {
	if err := r.Validate(ctx); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(r.path)
	if err != nil {
		return nil, fmt.Errorf("history: read root: %w", err)
	}

	var features []string
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == ".git" {
			continue
		}
		features = append(features, entry.Name())
	}
	sort.Strings(features)
	return features, nil
}
