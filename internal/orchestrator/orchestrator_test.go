package orchestrator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/weftlabs/weft/internal/audit"
	"github.com/weftlabs/weft/internal/errors"
	"github.com/weftlabs/weft/internal/git"
	"github.com/weftlabs/weft/internal/history"
	"github.com/weftlabs/weft/internal/queue"
	"github.com/weftlabs/weft/internal/state"
	"github.com/weftlabs/weft/internal/worktree"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	run("init", "--initial-branch=main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", "README.md")
	run("commit", "-m", "initial commit")

	return dir
}

// newOrchestrator builds a fully wired orchestrator over fresh repos.
func newOrchestrator(t *testing.T) (*Orchestrator, *worktree.Manager, string) {
	t.Helper()
	ctx := context.Background()
	pool := git.NewPool(2)

	repo := history.New(filepath.Join(t.TempDir(), "history"), pool)
	if err := repo.Init(ctx); err != nil {
		t.Fatal(err)
	}

	codeRepo := initRepo(t)
	wm, err := worktree.New(ctx, codeRepo, pool)
	if err != nil {
		t.Fatal(err)
	}

	return New(repo, wm, nil), wm, codeRepo
}

func TestSubmitPromptAutoConversation(t *testing.T) {
	o, _, _ := newOrchestrator(t)

	path, err := o.SubmitPrompt("feat-1", "00-meta", "Add login", 0, AutoConversationID)
	if err != nil {
		t.Fatalf("SubmitPrompt failed: %v", err)
	}

	task, err := o.Queue().ReadPrompt(path)
	if err != nil {
		t.Fatal(err)
	}
	if task.ConversationID != queue.ConversationID("feat-1", "00-meta") {
		t.Errorf("ConversationID = %q", task.ConversationID)
	}
	if task.SpecVersion != queue.DefaultSpecVersion {
		t.Errorf("SpecVersion = %q", task.SpecVersion)
	}
}

func TestWaitForResult(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	o.waitPoll = 10 * time.Millisecond

	minTime := time.Now().Add(-time.Minute)

	// Timeout with no result returns nil, nil.
	result, err := o.WaitForResult(context.Background(), "feat-1", "00-meta", 50*time.Millisecond, minTime)
	if err != nil {
		t.Fatalf("WaitForResult errored on timeout: %v", err)
	}
	if result != nil {
		t.Fatalf("result = %+v, want nil", result)
	}

	// With a result present it is returned immediately.
	if _, err := o.Queue().WriteResult(&queue.ResultTask{
		FeatureID: "feat-1", AgentID: "00-meta",
		OutputText: "done", OutputHash: audit.Hash("done"),
	}); err != nil {
		t.Fatal(err)
	}

	result, err = o.WaitForResult(context.Background(), "feat-1", "00-meta", time.Second, minTime)
	if err != nil {
		t.Fatalf("WaitForResult failed: %v", err)
	}
	if result == nil || result.OutputText != "done" {
		t.Errorf("result = %+v", result)
	}
}

func TestStartFeature(t *testing.T) {
	o, wm, _ := newOrchestrator(t)
	ctx := context.Background()

	fs, err := o.StartFeature(ctx, "feat-1", "main")
	if err != nil {
		t.Fatalf("StartFeature failed: %v", err)
	}
	if fs.Status != state.StatusInProgress {
		t.Errorf("Status = %q, want in-progress", fs.Status)
	}

	// Mailboxes exist for the whole pipeline.
	if _, err := os.Stat(o.Queue().InDir("feat-1", "00-meta")); err != nil {
		t.Errorf("meta mailbox missing: %v", err)
	}
	if _, err := os.Stat(o.Queue().InDir("feat-1", "05-test")); err != nil {
		t.Errorf("test mailbox missing: %v", err)
	}

	// Worktree exists on the feature branch.
	status, err := wm.Status(ctx, wm.Path("feat-1"))
	if err != nil {
		t.Fatalf("worktree missing: %v", err)
	}
	if status.CurrentBranch != "feature/feat-1" {
		t.Errorf("CurrentBranch = %q", status.CurrentBranch)
	}
}

func TestAcceptFeature(t *testing.T) {
	o, wm, codeRepo := newOrchestrator(t)
	ctx := context.Background()

	if _, err := o.StartFeature(ctx, "feat-1", "main"); err != nil {
		t.Fatal(err)
	}

	// Simulate agent work on the branch.
	wtPath := wm.Path("feat-1")
	if err := os.WriteFile(filepath.Join(wtPath, "feature.txt"), []byte("done\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := wm.CommitAll(ctx, wtPath, "agent output"); err != nil {
		t.Fatal(err)
	}

	if _, err := o.MarkReady("feat-1", "All agents finished"); err != nil {
		t.Fatal(err)
	}

	fs, err := o.AcceptFeature(ctx, "feat-1", "main")
	if err != nil {
		t.Fatalf("AcceptFeature failed: %v", err)
	}
	if fs.Status != state.StatusCompleted {
		t.Errorf("Status = %q, want completed", fs.Status)
	}
	if fs.MergeCommit == "" {
		t.Error("MergeCommit should be recorded")
	}
	if _, err := os.Stat(filepath.Join(codeRepo, "feature.txt")); err != nil {
		t.Errorf("merged file missing on main: %v", err)
	}
}

func TestAcceptFeatureConflict(t *testing.T) {
	o, wm, codeRepo := newOrchestrator(t)
	ctx := context.Background()

	if _, err := o.StartFeature(ctx, "feat-1", "main"); err != nil {
		t.Fatal(err)
	}

	// Diverge the same file on both branches.
	wtPath := wm.Path("feat-1")
	if err := os.WriteFile(filepath.Join(wtPath, "README.md"), []byte("feature\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := wm.CommitAll(ctx, wtPath, "feature change"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(codeRepo, "README.md"), []byte("mainline\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := wm.CommitAll(ctx, codeRepo, "main change"); err != nil {
		t.Fatal(err)
	}

	if _, err := o.MarkReady("feat-1", "ready"); err != nil {
		t.Fatal(err)
	}

	fs, err := o.AcceptFeature(ctx, "feat-1", "main")
	if !errors.Is(err, errors.ErrMergeConflict) {
		t.Fatalf("expected ErrMergeConflict, got %v", err)
	}
	if fs == nil || fs.Status != state.StatusMergeConflict {
		t.Fatalf("Status should be merge-conflict: %+v", fs)
	}
	if fs.MergeError == "" {
		t.Error("MergeError should be recorded")
	}

	// The conflicted feature can still be accepted after resolution,
	// or dropped; the state machine allows both.
	if !fs.Status.CanTransitionTo(state.StatusCompleted) {
		t.Error("merge-conflict should allow completed")
	}
}

func TestDropFeature(t *testing.T) {
	o, wm, _ := newOrchestrator(t)
	ctx := context.Background()

	if _, err := o.StartFeature(ctx, "feat-1", "main"); err != nil {
		t.Fatal(err)
	}

	fs, err := o.DropFeature(ctx, "feat-1", "abandoned")
	if err != nil {
		t.Fatalf("DropFeature failed: %v", err)
	}
	if fs.Status != state.StatusDropped {
		t.Errorf("Status = %q, want dropped", fs.Status)
	}
	if fs.DropReason != "abandoned" {
		t.Errorf("DropReason = %q", fs.DropReason)
	}
	if _, err := os.Stat(wm.Path("feat-1")); !os.IsNotExist(err) {
		t.Error("worktree should be removed")
	}
}

func TestTransitionRejectsInvalid(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	ctx := context.Background()

	if _, err := o.StartFeature(ctx, "feat-1", "main"); err != nil {
		t.Fatal(err)
	}

	// in-progress cannot jump straight to completed.
	_, err := o.AcceptFeature(ctx, "feat-1", "main")
	if !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAcceptFeatureCommitsDirtyWorktree(t *testing.T) {
	o, wm, codeRepo := newOrchestrator(t)
	ctx := context.Background()

	if _, err := o.StartFeature(ctx, "feat-1", "main"); err != nil {
		t.Fatal(err)
	}

	// Agent output left uncommitted in the worktree.
	wtPath := wm.Path("feat-1")
	if err := os.WriteFile(filepath.Join(wtPath, "feature.txt"), []byte("wip\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := o.MarkReady("feat-1", "ready"); err != nil {
		t.Fatal(err)
	}

	fs, err := o.AcceptFeature(ctx, "feat-1", "main")
	if err != nil {
		t.Fatalf("AcceptFeature failed: %v", err)
	}
	if fs.Status != state.StatusCompleted {
		t.Errorf("Status = %q, want completed", fs.Status)
	}
	if _, err := os.Stat(filepath.Join(codeRepo, "feature.txt")); err != nil {
		t.Errorf("uncommitted work should be committed and merged: %v", err)
	}
}

func TestRequestRevision(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	ctx := context.Background()

	if _, err := o.StartFeature(ctx, "feat-1", "main"); err != nil {
		t.Fatal(err)
	}
	if _, err := o.MarkReady("feat-1", "ready"); err != nil {
		t.Fatal(err)
	}

	fs, path, err := o.RequestRevision("feat-1", "03-ui", "Use the dark theme", 2)
	if err != nil {
		t.Fatalf("RequestRevision failed: %v", err)
	}
	if fs.Status != state.StatusInProgress {
		t.Errorf("Status = %q, want in-progress", fs.Status)
	}

	task, err := o.Queue().ReadPrompt(path)
	if err != nil {
		t.Fatal(err)
	}
	if task.Revision != 2 {
		t.Errorf("Revision = %d, want 2", task.Revision)
	}
	if task.ConversationID != queue.ConversationID("feat-1", "03-ui") {
		t.Errorf("ConversationID = %q", task.ConversationID)
	}

	last := fs.Transitions[len(fs.Transitions)-1]
	if last.Reason != "Revision requested" {
		t.Errorf("transition reason = %q", last.Reason)
	}
}
