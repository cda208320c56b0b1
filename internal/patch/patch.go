// Package patch extracts declarative file-change instructions from
// agent markdown output and applies them to a feature worktree.
package patch

// Action is the operation a patch performs on its target path.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// IsValid reports whether the action is one of the three known values.
func (a Action) IsValid() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

// Patch is one file-change instruction. FilePath is relative to the
// worktree root.
type Patch struct {
	FilePath string
	Content  string
	Language string
	Action   Action
}

// Artifact is an ordered batch of patches extracted from one agent
// output, plus any parser warnings.
type Artifact struct {
	Patches  []Patch
	Summary  string
	Warnings []string
}

// HasPatches reports whether the artifact carries any instructions.
func (a *Artifact) HasPatches() bool {
	return a != nil && len(a.Patches) > 0
}

// ApplyResult is the outcome of applying one patch. Partial success
// across a batch is expected, so results are never collapsed into a
// single boolean.
type ApplyResult struct {
	FilePath string
	Success  bool
	Error    string
	Warning  string
}

// ApplySummary aggregates per-patch results with a running count.
type ApplySummary struct {
	Results   []ApplyResult
	Succeeded int
	Failed    int
}
