package patch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/weftlabs/weft/internal/git"
)

// Applier writes patches into a worktree and stages each change in git.
type Applier struct {
	worktreePath string
	pool         *git.Pool
}

// NewApplier creates an Applier for the given worktree.
func NewApplier(worktreePath string, pool *git.Pool) *Applier {
	return &Applier{worktreePath: worktreePath, pool: pool}
}

// ApplyArtifact applies every patch in the artifact, even when earlier
// ones fail. One bad path must not discard an otherwise valid batch.
func (a *Applier) ApplyArtifact(ctx context.Context, artifact *Artifact) *ApplySummary {
	summary := &ApplySummary{}
	for _, p := range artifact.Patches {
		result := a.Apply(ctx, p)
		summary.Results = append(summary.Results, result)
		if result.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// Apply performs a single patch and reports its outcome. Errors are
// captured in the result, never raised.
func (a *Applier) Apply(ctx context.Context, p Patch) ApplyResult {
	result := ApplyResult{FilePath: p.FilePath}
	target := filepath.Join(a.worktreePath, p.FilePath)

	switch p.Action {
	case ActionDelete:
		if _, err := os.Stat(target); os.IsNotExist(err) {
			result.Success = true
			result.Warning = "file does not exist, nothing to delete"
			return result
		}
		// git rm removes from both index and filesystem.
		if _, err := a.pool.Run(ctx, a.worktreePath, "rm", "-f", p.FilePath); err != nil {
			if rmErr := os.Remove(target); rmErr != nil {
				result.Error = fmt.Sprintf("failed to delete: %v", err)
				return result
			}
			result.Warning = "removed from filesystem only, git rm failed"
		}
		result.Success = true
		return result

	case ActionCreate, ActionUpdate:
		_, statErr := os.Stat(target)
		exists := statErr == nil
		if p.Action == ActionCreate && exists {
			result.Warning = "file already exists, overwriting"
		}
		if p.Action == ActionUpdate && !exists {
			result.Warning = "file does not exist, creating"
		}

		if err := writeAtomic(target, []byte(p.Content)); err != nil {
			result.Error = fmt.Sprintf("failed to write: %v", err)
			return result
		}
		if _, err := a.pool.Run(ctx, a.worktreePath, "add", p.FilePath); err != nil {
			result.Error = fmt.Sprintf("written but not staged: %v", err)
			return result
		}
		result.Success = true
		return result

	default:
		result.Error = fmt.Sprintf("invalid action %q", p.Action)
		return result
	}
}

// writeAtomic writes data via a temp file in the target's directory and
// an atomic rename, creating parent directories as needed.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
