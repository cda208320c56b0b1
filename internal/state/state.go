// Package state models the lifecycle of a feature as an explicit
// finite-state machine with a persisted transition history.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/weftlabs/weft/internal/errors"
)

// Status is the lifecycle state of a feature.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusInProgress    Status = "in-progress"
	StatusReady         Status = "ready"
	StatusMergeConflict Status = "merge-conflict"
	StatusCompleted     Status = "completed"
	StatusDropped       Status = "dropped"
)

// validTransitions is the full transition table. Completed and dropped
// are terminal and have no outgoing edges.
var validTransitions = map[Status][]Status{
	StatusDraft:         {StatusInProgress, StatusDropped},
	StatusInProgress:    {StatusReady, StatusDraft, StatusDropped},
	StatusReady:         {StatusCompleted, StatusMergeConflict, StatusInProgress, StatusDropped},
	StatusMergeConflict: {StatusCompleted, StatusReady, StatusDropped},
	StatusCompleted:     {},
	StatusDropped:       {},
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusDropped
}

// IsValid reports whether the status is one of the known states.
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransitionTo reports whether a transition from s to target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Transition is one entry in a feature's state history.
type Transition struct {
	From      Status    `yaml:"from_state,omitempty"`
	To        Status    `yaml:"to_state"`
	Timestamp time.Time `yaml:"timestamp"`
	Reason    string    `yaml:"reason,omitempty"`
}

// FeatureState is the authoritative lifecycle record for one feature.
type FeatureState struct {
	FeatureName  string       `yaml:"feature_name"`
	Status       Status       `yaml:"status"`
	CreatedAt    time.Time    `yaml:"created_at"`
	LastActivity time.Time    `yaml:"last_activity"`
	Transitions  []Transition `yaml:"transitions"`
	MergeCommit  string       `yaml:"merge_commit,omitempty"`
	MergeError   string       `yaml:"merge_error,omitempty"`
	DropReason   string       `yaml:"drop_reason,omitempty"`
}

// New creates the initial record for a feature in draft status, seeded
// with a creation transition.
func New(featureName string) *FeatureState {
	now := time.Now().UTC()
	return &FeatureState{
		FeatureName:  featureName,
		Status:       StatusDraft,
		CreatedAt:    now,
		LastActivity: now,
		Transitions: []Transition{
			{To: StatusDraft, Timestamp: now, Reason: "Feature created"},
		},
	}
}

// TransitionTo moves the feature to newStatus, appending a history entry.
// A self-transition is an idempotent no-op. An invalid transition fails
// without mutating status or history.
func (f *FeatureState) TransitionTo(newStatus Status, reason string) error {
	if newStatus == f.Status {
		return nil
	}
	if !f.Status.CanTransitionTo(newStatus) {
		return errors.Wrap(errors.ErrInvalidTransition,
			fmt.Sprintf("cannot transition from %s to %s", f.Status, newStatus))
	}

	now := time.Now().UTC()
	f.Transitions = append(f.Transitions, Transition{
		From:      f.Status,
		To:        newStatus,
		Timestamp: now,
		Reason:    reason,
	})
	f.Status = newStatus
	f.LastActivity = now
	return nil
}

// FileName is the per-feature state record name.
const FileName = "feature_state.yaml"

// Path returns the state record path for a feature under the history root.
func Path(historyRoot, featureName string) string {
	return filepath.Join(historyRoot, featureName, FileName)
}

// Save writes the record to path, creating parent directories as needed.
func (f *FeatureState) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal feature state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write feature state: %w", err)
	}
	return nil
}

// Load reads a record from path. A missing file is reported as
// ErrStateNotFound so callers can distinguish it from a corrupt record.
func Load(path string) (*FeatureState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrStateNotFound, path)
		}
		return nil, fmt.Errorf("failed to read feature state: %w", err)
	}

	var f FeatureState
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse feature state: %w", err)
	}
	if !f.Status.IsValid() {
		return nil, errors.NewValidationError("status").
			WithValue(string(f.Status)).
			WithCause(fmt.Errorf("unknown status in %s", path))
	}
	return &f, nil
}
