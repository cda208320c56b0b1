package queue

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultThreadTolerance is the timestamp-proximity window used to pair
// prompts and results that predate conversation ids.
const DefaultThreadTolerance = 60 * time.Second

// Entry is one turn of a reconstructed conversation.
type Entry struct {
	Role      string // "user" for prompts, "assistant" for results
	Content   string
	Timestamp time.Time
}

// ConversationID returns the default conversation id for a
// (feature, agent) pair, with path separators flattened.
func ConversationID(featureID, agentID string) string {
	return strings.ReplaceAll(featureID, "/", "_") + "-" + agentID
}

// Thread reconstructs the multi-turn exchange for a conversation from
// the prompts (processed or pending) and results of one mailbox,
// ordered chronologically. Entries without a conversation id are
// matched by timestamp proximity within tolerance, for compatibility
// with older queue files; pass 0 for the default tolerance.
func (q *Queue) Thread(featureID, agentID, conversationID string, tolerance time.Duration) ([]Entry, error) {
	if tolerance <= 0 {
		tolerance = DefaultThreadTolerance
	}

	var entries []Entry
	var matchedTimes []time.Time
	var orphans []Entry

	add := func(e Entry, convID string) {
		if convID == conversationID && conversationID != "" {
			entries = append(entries, e)
			matchedTimes = append(matchedTimes, e.Timestamp)
			return
		}
		if convID == "" {
			orphans = append(orphans, e)
		}
	}

	inEntries, err := readDir(q.InDir(featureID, agentID))
	if err != nil {
		return nil, err
	}
	for _, f := range inEntries {
		task := DecodePrompt(f.content)
		add(Entry{Role: "user", Content: task.PromptText, Timestamp: f.modTime}, task.ConversationID)
	}

	outEntries, err := readDir(q.OutDir(featureID, agentID))
	if err != nil {
		return nil, err
	}
	for _, f := range outEntries {
		if !strings.HasSuffix(f.name, ResultSuffix) {
			continue
		}
		result := DecodeResult(f.content)
		ts := result.GeneratedAt
		if ts.IsZero() {
			ts = f.modTime
		}
		add(Entry{Role: "assistant", Content: result.OutputText, Timestamp: ts}, result.ConversationID)
	}

	// Fold in untagged entries that sit close enough to a tagged turn.
	for _, o := range orphans {
		for _, t := range matchedTimes {
			d := o.Timestamp.Sub(t)
			if d < 0 {
				d = -d
			}
			if d <= tolerance {
				entries = append(entries, o)
				break
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

type fileEntry struct {
	name    string
	content string
	modTime time.Time
}

// readDir loads every regular file in dir. A missing directory yields
// an empty slice.
func readDir(dir string) ([]fileEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []fileEntry
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		files = append(files, fileEntry{name: entry.Name(), content: string(data), modTime: info.ModTime()})
	}
	return files, nil
}
