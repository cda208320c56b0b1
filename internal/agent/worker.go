package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/weftlabs/weft/internal/ai"
	"github.com/weftlabs/weft/internal/audit"
	"github.com/weftlabs/weft/internal/git"
	"github.com/weftlabs/weft/internal/logging"
	"github.com/weftlabs/weft/internal/patch"
	"github.com/weftlabs/weft/internal/queue"
)

// DefaultPollInterval is the sleep between mailbox scans.
const DefaultPollInterval = 2 * time.Second

// Worker polls one (feature, agent) mailbox, processes pending prompts
// through the backend, and writes results. It owns no invariants beyond
// delegating to the queue, backend, and patch applier.
type Worker struct {
	def          Definition
	featureID    string
	queue        *queue.Queue
	backend      ai.Backend
	pollInterval time.Duration
	logger       *logging.Logger

	// Optional: when set, patches found in output are applied here.
	worktreePath string
	gitPool      *git.Pool
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithPollInterval overrides the default poll interval.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithWorktree enables patch application into the given worktree.
func WithWorktree(path string, pool *git.Pool) WorkerOption {
	return func(w *Worker) {
		w.worktreePath = path
		w.gitPool = pool
	}
}

// NewWorker creates a worker for one feature and agent.
func NewWorker(def Definition, featureID string, q *queue.Queue, backend ai.Backend, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = logging.Discard()
	}
	w := &Worker{
		def:          def,
		featureID:    featureID,
		queue:        q,
		backend:      backend,
		pollInterval: DefaultPollInterval,
		logger:       logger.WithFeature(featureID).WithAgent(def.ID),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls the mailbox until ctx is cancelled. A cancellation arriving
// mid-iteration finishes the current prompt before returning; there is
// no mid-generation abort beyond the context passed to the backend.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "poll_interval", w.pollInterval.String())

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.Poll(ctx)

		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll processes every prompt currently pending, in FIFO order.
// Failures are recorded as error results; the loop always continues to
// the next prompt.
func (w *Worker) Poll(ctx context.Context) {
	inDir := w.queue.InDir(w.featureID, w.def.ID)
	pending, err := w.queue.ListPending(inDir)
	if err != nil {
		w.logger.Error("failed to list pending prompts", "error", err.Error())
		return
	}

	for _, path := range pending {
		w.processOne(ctx, path)
	}
}

// processOne handles a single prompt file end to end. The prompt is
// always marked processed, even on failure, so the audit trail never
// has a silent gap; failures become clearly prefixed error results.
func (w *Worker) processOne(ctx context.Context, path string) {
	task, err := w.queue.ReadPrompt(path)
	if err != nil {
		// A racing worker already claimed it.
		w.logger.Debug("prompt vanished before read", "path", path)
		return
	}

	if _, err := w.queue.MarkProcessed(path); err != nil {
		w.logger.Debug("lost claim race", "path", path)
		return
	}

	output, genErr := w.generate(ctx, task)
	if genErr != nil {
		w.logger.Error("processing failed", "error", genErr.Error())
		output = "ERROR: " + genErr.Error()
	}

	result := &queue.ResultTask{
		FeatureID:      task.FeatureID,
		AgentID:        task.AgentID,
		OutputText:     output,
		PromptHash:     audit.Hash(task.PromptText),
		OutputHash:     audit.Hash(output),
		GeneratedAt:    time.Now().UTC(),
		ConversationID: task.ConversationID,
	}
	if _, err := w.queue.WriteResult(result); err != nil {
		w.logger.Error("failed to write result", "error", err.Error())
		return
	}

	if genErr == nil && w.worktreePath != "" && patch.HasPatches(output) {
		w.applyPatches(ctx, output)
	}
}

// generate validates the prompt, reconstructs conversation context,
// calls the backend, and validates the output.
func (w *Worker) generate(ctx context.Context, task *queue.PromptTask) (string, error) {
	if strings.TrimSpace(task.PromptText) == "" {
		return "", fmt.Errorf("prompt text cannot be empty")
	}

	var history []ai.Message
	if task.ConversationID != "" {
		entries, err := w.queue.Thread(w.featureID, w.def.ID, task.ConversationID, 0)
		if err != nil {
			w.logger.Warn("failed to load conversation history", "error", err.Error())
		}
		history = pairHistory(entries)
	}

	output, err := w.backend.Generate(ctx, w.def.BuildPrompt(task.PromptText), history)
	if err != nil {
		return "", err
	}

	if err := w.def.ValidateOutput(output); err != nil {
		return "", err
	}
	return output, nil
}

// pairHistory converts thread entries into completed user/assistant
// pairs. Unanswered prompts, including the one being processed right
// now, are excluded so the backend only sees finished turns.
func pairHistory(entries []queue.Entry) []ai.Message {
	var history []ai.Message
	var pendingUser *queue.Entry

	for i := range entries {
		e := entries[i]
		switch e.Role {
		case "user":
			pendingUser = &entries[i]
		case "assistant":
			if pendingUser != nil {
				history = append(history,
					ai.Message{Role: "user", Content: pendingUser.Content},
					ai.Message{Role: "assistant", Content: e.Content})
				pendingUser = nil
			}
		}
	}
	return history
}

// applyPatches runs the patch applier against the worktree and logs the
// per-patch outcome. Partial failure is expected and never stops the
// worker.
func (w *Worker) applyPatches(ctx context.Context, output string) {
	artifact := patch.Parse(output)
	for _, warning := range artifact.Warnings {
		w.logger.Warn("patch parse warning", "warning", warning)
	}

	applier := patch.NewApplier(w.worktreePath, w.gitPool)
	summary := applier.ApplyArtifact(ctx, artifact)
	w.logger.Info("applied patches",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed)
	for _, r := range summary.Results {
		if !r.Success {
			w.logger.Error("patch failed", "file", r.FilePath, "error", r.Error)
		}
	}
}
