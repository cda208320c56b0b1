// Package orchestrator drives the feature workflow: it submits prompts
// into agent mailboxes, waits for results, and advances the feature
// state machine based on the outcome.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/weftlabs/weft/internal/agent"
	"github.com/weftlabs/weft/internal/errors"
	"github.com/weftlabs/weft/internal/history"
	"github.com/weftlabs/weft/internal/logging"
	"github.com/weftlabs/weft/internal/queue"
	"github.com/weftlabs/weft/internal/state"
	"github.com/weftlabs/weft/internal/worktree"
)

// DefaultWaitPoll is the sleep between result checks while waiting.
const DefaultWaitPoll = 2 * time.Second

// Orchestrator coordinates the queue, state machine, history repo, and
// worktree manager for one history root.
type Orchestrator struct {
	queue     *queue.Queue
	repo      *history.Repo
	worktrees *worktree.Manager
	logger    *logging.Logger
	waitPoll  time.Duration
}

// New assembles an orchestrator. The worktree manager may be nil for
// queue-only operations.
func New(repo *history.Repo, worktrees *worktree.Manager, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Orchestrator{
		queue:     queue.New(repo.Path()),
		repo:      repo,
		worktrees: worktrees,
		logger:    logger,
		waitPoll:  DefaultWaitPoll,
	}
}

// Queue exposes the underlying task queue.
func (o *Orchestrator) Queue() *queue.Queue {
	return o.queue
}

// AutoConversationID requests the default per-(feature, agent)
// conversation id when passed to SubmitPrompt.
const AutoConversationID = "auto"

// SubmitPrompt writes a prompt into an agent's mailbox. Pass
// AutoConversationID to derive the conversation id from the feature and
// agent; pass "" for no threading.
func (o *Orchestrator) SubmitPrompt(featureID, agentID, prompt string, revision int, conversationID string) (string, error) {
	if conversationID == AutoConversationID {
		conversationID = queue.ConversationID(featureID, agentID)
	}

	path, err := o.queue.Submit(&queue.PromptTask{
		FeatureID:      featureID,
		AgentID:        agentID,
		PromptText:     prompt,
		SpecVersion:    queue.DefaultSpecVersion,
		Revision:       revision,
		ConversationID: conversationID,
	})
	if err != nil {
		return "", err
	}

	o.logger.WithFeature(featureID).WithAgent(agentID).Info("prompt submitted", "path", path)
	return path, nil
}

// WaitForResult polls the agent's out/ directory until a result newer
// than minTime appears or the timeout elapses. Timing out returns
// (nil, nil): no result yet is an expected condition, not a failure.
func (o *Orchestrator) WaitForResult(ctx context.Context, featureID, agentID string, timeout time.Duration, minTime time.Time) (*queue.ResultTask, error) {
	outDir := o.queue.OutDir(featureID, agentID)
	deadline := time.Now().Add(timeout)

	for {
		result, err := o.queue.ReadLatestResultSince(outDir, minTime)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, errors.ErrResultNotFound) {
			return nil, err
		}

		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.waitPoll):
		}
	}
}

// StartFeature creates the mailbox structure, the state record, and the
// feature worktree, then moves the feature to in-progress.
func (o *Orchestrator) StartFeature(ctx context.Context, featureID, baseBranch string) (*state.FeatureState, error) {
	var agentIDs []string
	for _, def := range agent.ExecutionOrder() {
		agentIDs = append(agentIDs, def.ID)
	}
	if err := o.repo.CreateFeatureStructure(ctx, featureID, agentIDs); err != nil {
		return nil, err
	}

	statePath := state.Path(o.repo.Path(), featureID)
	fs, err := state.Load(statePath)
	if errors.Is(err, errors.ErrStateNotFound) {
		fs = state.New(featureID)
	} else if err != nil {
		return nil, err
	}

	if o.worktrees != nil {
		if _, err := o.worktrees.Create(ctx, featureID, baseBranch); err != nil {
			// An existing worktree means a previous start; keep going.
			if !errors.Is(err, errors.ErrWorktreeExists) {
				return nil, err
			}
		}
	}

	if err := fs.TransitionTo(state.StatusInProgress, "Agent pipeline started"); err != nil {
		return nil, err
	}
	if err := fs.Save(statePath); err != nil {
		return nil, err
	}

	o.logger.WithFeature(featureID).Info("feature started", "base_branch", baseBranch)
	return fs, nil
}

// RequestRevision sends a feature back to in-progress and queues a
// revision prompt for the agent, threaded into the agent's default
// conversation so it sees the earlier exchange.
func (o *Orchestrator) RequestRevision(featureID, agentID, prompt string, revision int) (*state.FeatureState, string, error) {
	if revision < 1 {
		revision = 1
	}

	fs, err := o.transition(featureID, state.StatusInProgress, "Revision requested", nil)
	if err != nil {
		return nil, "", err
	}

	path, err := o.SubmitPrompt(featureID, agentID, prompt, revision, queue.ConversationID(featureID, agentID))
	if err != nil {
		return nil, "", err
	}
	return fs, path, nil
}

// MarkReady moves a feature from in-progress to ready for review.
func (o *Orchestrator) MarkReady(featureID, reason string) (*state.FeatureState, error) {
	return o.transition(featureID, state.StatusReady, reason, nil)
}

// AcceptFeature merges the feature branch into targetBranch and marks
// the feature completed. A conflicted merge moves the feature to
// merge-conflict instead, recording the error, and reports it.
func (o *Orchestrator) AcceptFeature(ctx context.Context, featureID, targetBranch string) (*state.FeatureState, error) {
	if o.worktrees == nil {
		return nil, errors.New("orchestrator: no worktree manager configured")
	}

	// Commit any uncommitted agent output before merging.
	wtPath := o.worktrees.Path(featureID)
	if _, err := os.Stat(wtPath); err == nil {
		if _, err := o.worktrees.CommitAll(ctx, wtPath, fmt.Sprintf("Finalize %s", featureID)); err != nil {
			return nil, err
		}
	}

	mergeCommit, mergeErr := o.worktrees.Merge(ctx, featureID, targetBranch)
	if mergeErr != nil {
		if errors.Is(mergeErr, errors.ErrMergeConflict) {
			fs, stateErr := o.transition(featureID, state.StatusMergeConflict, "Merge failed",
				func(fs *state.FeatureState) {
					fs.MergeError = mergeErr.Error()
				})
			if stateErr != nil {
				return nil, fmt.Errorf("merge conflict, and state update failed: %w", stateErr)
			}
			return fs, mergeErr
		}
		return nil, mergeErr
	}

	return o.transition(featureID, state.StatusCompleted, "Feature accepted and merged",
		func(fs *state.FeatureState) {
			fs.MergeCommit = mergeCommit
			fs.MergeError = ""
		})
}

// DropFeature marks the feature dropped and removes its worktree and
// branch. Worktree cleanup failure does not undo the state change.
func (o *Orchestrator) DropFeature(ctx context.Context, featureID, reason string) (*state.FeatureState, error) {
	if reason == "" {
		reason = "Feature dropped"
	}

	fs, err := o.transition(featureID, state.StatusDropped, reason,
		func(fs *state.FeatureState) {
			fs.DropReason = reason
		})
	if err != nil {
		return nil, err
	}

	if o.worktrees != nil {
		if !o.worktrees.Remove(ctx, featureID, true) {
			o.logger.WithFeature(featureID).Warn("worktree cleanup incomplete")
		}
	}
	return fs, nil
}

// transition loads, mutates, transitions, and saves a feature state.
func (o *Orchestrator) transition(featureID string, to state.Status, reason string, mutate func(*state.FeatureState)) (*state.FeatureState, error) {
	statePath := state.Path(o.repo.Path(), featureID)
	fs, err := state.Load(statePath)
	if err != nil {
		return nil, err
	}

	if mutate != nil {
		mutate(fs)
	}
	if err := fs.TransitionTo(to, reason); err != nil {
		return nil, err
	}
	if err := fs.Save(statePath); err != nil {
		return nil, err
	}

	o.logger.WithFeature(featureID).Info("feature transitioned",
		"status", string(to), "reason", reason)
	return fs, nil
}
