// Package queue implements the per (feature, agent) mailbox used as the
// sole communication channel between the orchestrator and agent workers.
// Each mailbox is an in/ and out/ directory pair under the history root;
// writes are atomic and the in/ log is append-only for audit.
package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/weftlabs/weft/internal/audit"
	"github.com/weftlabs/weft/internal/errors"
)

const (
	// ProcessedSuffix marks a prompt file as handled. The rename to
	// this suffix is the sole commit point for a prompt.
	ProcessedSuffix = ".processed"

	// ResultSuffix marks result files in out/.
	ResultSuffix = "_result.md"
)

// Queue is a file-based task queue rooted at a history directory.
type Queue struct {
	root string
}

// New creates a Queue rooted at root. Directories are created lazily on
// first write.
func New(root string) *Queue {
	return &Queue{root: root}
}

// Root returns the history root the queue operates on.
func (q *Queue) Root() string {
	return q.root
}

// InDir returns the pending-prompt directory for a (feature, agent) pair.
func (q *Queue) InDir(featureID, agentID string) string {
	return filepath.Join(q.root, featureID, agentID, "in")
}

// OutDir returns the result directory for a (feature, agent) pair.
func (q *Queue) OutDir(featureID, agentID string) string {
	return filepath.Join(q.root, featureID, agentID, "out")
}

// Submit validates and writes a prompt task into the agent's in/
// directory, returning the path it was written to. The file name is
// revision-numbered when the task carries a revision, otherwise
// timestamp-numbered so FIFO ordering holds without caller-supplied
// sequence numbers.
func (q *Queue) Submit(task *PromptTask) (string, error) {
	if strings.TrimSpace(task.PromptText) == "" {
		return "", errors.Wrap(errors.ErrEmptyPrompt,
			fmt.Sprintf("feature %s agent %s", task.FeatureID, task.AgentID))
	}

	dir := q.InDir(task.FeatureID, task.AgentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("queue: create in directory: %w", err)
	}

	path := filepath.Join(dir, promptFileName(task))
	if err := atomicWrite(path, []byte(task.Encode())); err != nil {
		return "", fmt.Errorf("queue: write prompt: %w", err)
	}
	return path, nil
}

// promptFileName builds the on-disk name for a prompt task.
func promptFileName(task *PromptTask) string {
	if task.Revision > 0 {
		clean := strings.ReplaceAll(task.FeatureID, "/", "_")
		return fmt.Sprintf("%s_prompt_v%d.md", clean, task.Revision)
	}
	now := time.Now().UTC()
	return fmt.Sprintf("%s_%06d_prompt.md", now.Format("20060102_150405"), now.Nanosecond()/1000)
}

// ListPending returns the paths of unprocessed prompts in inDir, oldest
// first. A missing directory yields an empty list, not an error.
func (q *Queue) ListPending(inDir string) ([]string, error) {
	entries, err := os.ReadDir(inDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: read in directory: %w", err)
	}

	type pending struct {
		path    string
		modTime time.Time
	}
	var files []pending
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ProcessedSuffix) || !strings.HasSuffix(name, ".md") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, pending{path: filepath.Join(inDir, name), modTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.Before(files[j].modTime)
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

// MarkProcessed renames a prompt file to its processed marker and
// returns the new path. A missing source reports ErrPromptNotFound so a
// racing second consumer can tell it lost and skip.
func (q *Queue) MarkProcessed(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrap(errors.ErrPromptNotFound, path)
		}
		return "", fmt.Errorf("queue: stat prompt: %w", err)
	}

	newPath := path + ProcessedSuffix
	if err := os.Rename(path, newPath); err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrap(errors.ErrPromptNotFound, path)
		}
		return "", fmt.Errorf("queue: mark processed: %w", err)
	}
	return newPath, nil
}

// ReadPrompt reads and decodes a prompt file.
func (q *Queue) ReadPrompt(path string) (*PromptTask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrPromptNotFound, path)
		}
		return nil, fmt.Errorf("queue: read prompt: %w", err)
	}
	return DecodePrompt(string(data)), nil
}

// WriteResult hashes and writes a result into the agent's out/
// directory, returning the path. Hashes are computed here so the file
// on disk always satisfies verification.
func (q *Queue) WriteResult(result *ResultTask) (string, error) {
	if result.GeneratedAt.IsZero() {
		result.GeneratedAt = time.Now().UTC()
	}
	if result.OutputHash == "" {
		result.OutputHash = audit.Hash(result.OutputText)
	}

	dir := q.OutDir(result.FeatureID, result.AgentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("queue: create out directory: %w", err)
	}

	now := time.Now().UTC()
	name := fmt.Sprintf("%s_%06d%s", now.Format("20060102_150405"), now.Nanosecond()/1000, ResultSuffix)
	path := filepath.Join(dir, name)
	if err := atomicWrite(path, []byte(result.Encode())); err != nil {
		return "", fmt.Errorf("queue: write result: %w", err)
	}
	return path, nil
}

// ReadLatestResult returns the decoded result with the greatest
// modification time in outDir. ErrResultNotFound means no result exists
// yet, which callers treat as "not yet processed" rather than a failure.
func (q *Queue) ReadLatestResult(outDir string) (*ResultTask, error) {
	return q.ReadLatestResultSince(outDir, time.Time{})
}

// ReadLatestResultSince behaves like ReadLatestResult but ignores
// results modified at or before minTime, supporting the "wait for the
// next result, skip stale ones" polling pattern.
func (q *Queue) ReadLatestResultSince(outDir string, minTime time.Time) (*ResultTask, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrResultNotFound, outDir)
		}
		return nil, fmt.Errorf("queue: read out directory: %w", err)
	}

	var latest string
	var latestTime time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ResultSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if !minTime.IsZero() && !mod.After(minTime) {
			continue
		}
		if latest == "" || mod.After(latestTime) {
			latest = filepath.Join(outDir, entry.Name())
			latestTime = mod
		}
	}
	if latest == "" {
		return nil, errors.Wrap(errors.ErrResultNotFound, outDir)
	}

	data, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("queue: read result: %w", err)
	}
	return DecodeResult(string(data)), nil
}

// atomicWrite writes data to path via a temp file in the same directory
// and an atomic rename, so no reader ever observes a partial file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
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
