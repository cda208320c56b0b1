package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/weftlabs/weft/internal/errors"
)

// initRepo creates a git repository with one commit and returns its path.
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

func TestRunReturnsStdout(t *testing.T) {
	repo := initRepo(t)
	pool := NewPool(2)

	out, err := pool.Run(context.Background(), repo, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out != "main" {
		t.Errorf("branch = %q, want %q", out, "main")
	}
}

func TestRunFailureIsGitError(t *testing.T) {
	repo := initRepo(t)
	pool := NewPool(1)

	_, err := pool.Run(context.Background(), repo, "checkout", "no-such-branch")
	if err == nil {
		t.Fatal("expected error for missing branch")
	}

	var gitErr *errors.GitError
	if !errors.As(err, &gitErr) {
		t.Fatalf("expected *GitError, got %T", err)
	}
	if gitErr.Output == "" {
		t.Error("GitError should carry git's output")
	}
}

func TestIsRepository(t *testing.T) {
	repo := initRepo(t)
	pool := NewPool(1)

	if !pool.IsRepository(context.Background(), repo) {
		t.Error("initialized repo should be detected")
	}
	if pool.IsRepository(context.Background(), t.TempDir()) {
		t.Error("plain directory should not be detected as a repo")
	}
}

func TestNilPoolRunsDirectly(t *testing.T) {
	var pool *Pool
	called := false
	if err := pool.Acquire(context.Background(), func() error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("nil pool Acquire failed: %v", err)
	}
	if !called {
		t.Error("fn was not executed")
	}
}

func TestPoolLimitsConcurrency(t *testing.T) {
	pool := NewPool(2)

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	release := make(chan struct{})

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Acquire(context.Background(), func() error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				<-release
				current.Add(-1)
				return nil
			})
		}()
	}

	close(release)
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestAcquireCancelledContext(t *testing.T) {
	pool := NewPool(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pool.Acquire(ctx, func() error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
