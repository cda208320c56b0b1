package queue

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/weftlabs/weft/internal/audit"
	"github.com/weftlabs/weft/internal/errors"
)

func TestSubmitEmptyPrompt(t *testing.T) {
	q := New(t.TempDir())

	_, err := q.Submit(&PromptTask{FeatureID: "feat-1", AgentID: "00-meta", PromptText: "   \n\t "})
	if !errors.Is(err, errors.ErrEmptyPrompt) {
		t.Errorf("expected ErrEmptyPrompt, got %v", err)
	}
}

func TestSubmitRevisionNaming(t *testing.T) {
	q := New(t.TempDir())

	path, err := q.Submit(&PromptTask{
		FeatureID:  "auth/login",
		AgentID:    "01-architect",
		PromptText: "Design it",
		Revision:   3,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if filepath.Base(path) != "auth_login_prompt_v3.md" {
		t.Errorf("file name = %q, want auth_login_prompt_v3.md", filepath.Base(path))
	}
	if filepath.Dir(path) != q.InDir("auth/login", "01-architect") {
		t.Errorf("file written to %q", filepath.Dir(path))
	}
}

func TestSubmitTimestampNaming(t *testing.T) {
	q := New(t.TempDir())

	path, err := q.Submit(&PromptTask{FeatureID: "feat-1", AgentID: "00-meta", PromptText: "Do it"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	name := filepath.Base(path)
	if !strings.HasSuffix(name, "_prompt.md") {
		t.Errorf("file name = %q, want *_prompt.md", name)
	}
}

func TestPromptRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		task PromptTask
	}{
		{
			name: "all fields",
			task: PromptTask{
				FeatureID:      "feat-1",
				AgentID:        "01-architect",
				PromptText:     "Design the login flow",
				SpecVersion:    "1.0.0",
				Revision:       2,
				ConversationID: "feat-1-01-architect",
			},
		},
		{
			name: "optional fields absent",
			task: PromptTask{
				FeatureID:   "feat-2",
				AgentID:     "00-meta",
				PromptText:  "Summarize",
				SpecVersion: "1.0.0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := DecodePrompt(tt.task.Encode())
			if *decoded != tt.task {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", *decoded, tt.task)
			}
		})
	}
}

func TestResultRoundTrip(t *testing.T) {
	result := ResultTask{
		FeatureID:      "feat-1",
		AgentID:        "02-impl",
		OutputText:     "Generated code",
		PromptHash:     audit.Hash("the prompt"),
		OutputHash:     audit.Hash("Generated code"),
		GeneratedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ConversationID: "feat-1-02-impl",
	}

	decoded := DecodeResult(result.Encode())
	if *decoded != result {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", *decoded, result)
	}
}

func TestDecodeResultGeneratedAtFormats(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{
			name:  "second precision",
			value: "2026-03-01T12:00:00Z",
			want:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "microseconds with suffix",
			value: "2026-03-01T12:00:00.123456Z",
			want:  time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC),
		},
		{
			name:  "microseconds without suffix",
			value: "2026-03-01T12:00:00.123456",
			want:  time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC),
		},
		{
			name:  "no suffix",
			value: "2026-03-01T12:00:00",
			want:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "---\nfeature: feat-1\nagent: 02-impl\ngenerated_at: " +
				tt.value + "\n---\n\nbody"
			decoded := DecodeResult(content)
			if !decoded.GeneratedAt.Equal(tt.want) {
				t.Errorf("GeneratedAt = %v, want %v", decoded.GeneratedAt, tt.want)
			}
		})
	}

	if got := DecodeResult("---\ngenerated_at: not-a-time\n---\n\nbody").GeneratedAt; !got.IsZero() {
		t.Errorf("unparseable timestamp should decode to zero, got %v", got)
	}
}

func TestListPendingFIFO(t *testing.T) {
	q := New(t.TempDir())
	inDir := q.InDir("feat-1", "00-meta")
	if err := os.MkdirAll(inDir, 0o755); err != nil {
		t.Fatal(err)
	}

	// Write in reverse lexical order with increasing mod times so the
	// sort cannot accidentally pass on name order.
	names := []string{"c_prompt.md", "b_prompt.md", "a_prompt.md"}
	base := time.Now().Add(-time.Hour)
	for i, name := range names {
		path := filepath.Join(inDir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		mt := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, mt, mt); err != nil {
			t.Fatal(err)
		}
	}
	// Processed and non-markdown files must be excluded.
	if err := os.WriteFile(filepath.Join(inDir, "old_prompt.md.processed"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inDir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	pending, err := q.ListPending(inDir)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("len(pending) = %d, want 3", len(pending))
	}
	for i, want := range names {
		if filepath.Base(pending[i]) != want {
			t.Errorf("pending[%d] = %q, want %q", i, filepath.Base(pending[i]), want)
		}
	}
}

func TestListPendingMissingDir(t *testing.T) {
	q := New(t.TempDir())
	pending, err := q.ListPending(q.InDir("ghost", "00-meta"))
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("len(pending) = %d, want 0", len(pending))
	}
}

func TestMarkProcessed(t *testing.T) {
	q := New(t.TempDir())

	path, err := q.Submit(&PromptTask{FeatureID: "feat-1", AgentID: "00-meta", PromptText: "Do it"})
	if err != nil {
		t.Fatal(err)
	}

	newPath, err := q.MarkProcessed(path)
	if err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if newPath != path+ProcessedSuffix {
		t.Errorf("newPath = %q, want %q", newPath, path+ProcessedSuffix)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original file should be gone")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Errorf("processed file missing: %v", err)
	}

	// Double-processing guard.
	if _, err := q.MarkProcessed(path); !errors.Is(err, errors.ErrPromptNotFound) {
		t.Errorf("second MarkProcessed: expected ErrPromptNotFound, got %v", err)
	}
}

func TestMarkProcessedNeverExisting(t *testing.T) {
	q := New(t.TempDir())
	_, err := q.MarkProcessed(filepath.Join(q.Root(), "nope.md"))
	if !errors.Is(err, errors.ErrPromptNotFound) {
		t.Errorf("expected ErrPromptNotFound, got %v", err)
	}
}

func TestWriteResultComputesHash(t *testing.T) {
	q := New(t.TempDir())

	path, err := q.WriteResult(&ResultTask{
		FeatureID:  "feat-1",
		AgentID:    "00-meta",
		OutputText: "Generated spec",
		PromptHash: audit.Hash("Add login"),
	})
	if err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}
	if !strings.HasSuffix(path, ResultSuffix) {
		t.Errorf("result path %q missing suffix", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !audit.Verify(string(data), audit.Hash("Generated spec")) {
		t.Error("written result should verify against its own hash")
	}
}

func TestReadLatestResult(t *testing.T) {
	q := New(t.TempDir())
	outDir := q.OutDir("feat-1", "00-meta")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}

	write := func(name, body string, mod time.Time) {
		t.Helper()
		r := ResultTask{FeatureID: "feat-1", AgentID: "00-meta", OutputText: body,
			OutputHash: audit.Hash(body), GeneratedAt: mod.UTC()}
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, []byte(r.Encode()), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatal(err)
		}
	}

	now := time.Now()
	write("a_result.md", "old output", now.Add(-2*time.Hour))
	write("b_result.md", "new output", now.Add(-time.Hour))

	result, err := q.ReadLatestResult(outDir)
	if err != nil {
		t.Fatalf("ReadLatestResult failed: %v", err)
	}
	if result.OutputText != "new output" {
		t.Errorf("OutputText = %q, want %q", result.OutputText, "new output")
	}

	// A minimum-timestamp filter past both results means not found.
	_, err = q.ReadLatestResultSince(outDir, now)
	if !errors.Is(err, errors.ErrResultNotFound) {
		t.Errorf("expected ErrResultNotFound, got %v", err)
	}
}

func TestReadLatestResultEmpty(t *testing.T) {
	q := New(t.TempDir())
	_, err := q.ReadLatestResult(q.OutDir("feat-1", "00-meta"))
	if !errors.Is(err, errors.ErrResultNotFound) {
		t.Errorf("expected ErrResultNotFound, got %v", err)
	}
}

// Full submit → list → process → result → read cycle.
func TestQueueLifecycle(t *testing.T) {
	q := New(t.TempDir())

	if _, err := q.Submit(&PromptTask{
		FeatureID:  "feat-1",
		AgentID:    "00-meta",
		PromptText: "Add login",
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	pending, err := q.ListPending(q.InDir("feat-1", "00-meta"))
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("len(pending) = %d, want 1", len(pending))
	}

	task, err := q.ReadPrompt(pending[0])
	if err != nil {
		t.Fatal(err)
	}
	if task.PromptText != "Add login" {
		t.Errorf("PromptText = %q", task.PromptText)
	}

	if _, err := q.MarkProcessed(pending[0]); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	pending, err = q.ListPending(q.InDir("feat-1", "00-meta"))
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("processed prompt still listed as pending")
	}

	if _, err := q.WriteResult(&ResultTask{
		FeatureID:  "feat-1",
		AgentID:    "00-meta",
		OutputText: "Generated spec",
		PromptHash: audit.Hash("Add login"),
		OutputHash: audit.Hash("Generated spec"),
	}); err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}

	result, err := q.ReadLatestResult(q.OutDir("feat-1", "00-meta"))
	if err != nil {
		t.Fatal(err)
	}
	if result.OutputText != "Generated spec" {
		t.Errorf("OutputText = %q, want %q", result.OutputText, "Generated spec")
	}
	if result.OutputHash != audit.Hash("Generated spec") {
		t.Errorf("OutputHash mismatch")
	}
}
