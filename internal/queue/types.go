package queue

import (
	"strconv"
	"strings"
	"time"

	"github.com/weftlabs/weft/internal/audit"
)

// DefaultSpecVersion is stamped on tasks that do not carry an explicit
// prompt spec version.
const DefaultSpecVersion = "1.0.0"

// PromptTask is one unit of work submitted to an agent.
type PromptTask struct {
	FeatureID      string
	AgentID        string
	PromptText     string
	SpecVersion    string
	Revision       int    // optional, 0 means unset
	ConversationID string // optional
}

// ResultTask is the output of processing a PromptTask.
type ResultTask struct {
	FeatureID      string
	AgentID        string
	OutputText     string
	PromptHash     string
	OutputHash     string
	GeneratedAt    time.Time
	ConversationID string // optional
}

// Header field names shared by prompt and result files.
const (
	fieldFeature        = "feature"
	fieldAgent          = "agent"
	fieldSpecVersion    = "prompt_spec_version"
	fieldRevision       = "revision"
	fieldConversationID = "conversation_id"
	fieldGeneratedAt    = "generated_at"
	fieldPromptHash     = "prompt_hash"
	fieldOutputHash     = "output_hash"
)

// Encode serializes the prompt into a header block followed by the body.
func (t *PromptTask) Encode() string {
	version := t.SpecVersion
	if version == "" {
		version = DefaultSpecVersion
	}

	fields := []audit.Field{
		{Key: fieldFeature, Value: t.FeatureID},
		{Key: fieldAgent, Value: t.AgentID},
		{Key: fieldSpecVersion, Value: version},
	}
	if t.Revision > 0 {
		fields = append(fields, audit.Field{Key: fieldRevision, Value: strconv.Itoa(t.Revision)})
	}
	if t.ConversationID != "" {
		fields = append(fields, audit.Field{Key: fieldConversationID, Value: t.ConversationID})
	}

	return audit.EncodeHeader(fields, t.PromptText)
}

// DecodePrompt parses a serialized prompt file back into a PromptTask.
// Fields absent from the header stay at their zero value.
func DecodePrompt(content string) *PromptTask {
	fields, body := audit.DecodeHeader(content)

	task := &PromptTask{
		FeatureID:      fields[fieldFeature],
		AgentID:        fields[fieldAgent],
		PromptText:     strings.TrimPrefix(body, "\n"),
		SpecVersion:    fields[fieldSpecVersion],
		ConversationID: fields[fieldConversationID],
	}
	if rev, err := strconv.Atoi(fields[fieldRevision]); err == nil {
		task.Revision = rev
	}
	return task
}

// Encode serializes the result into a header block followed by the output.
func (r *ResultTask) Encode() string {
	fields := []audit.Field{
		{Key: fieldFeature, Value: r.FeatureID},
		{Key: fieldAgent, Value: r.AgentID},
		{Key: fieldSpecVersion, Value: DefaultSpecVersion},
		{Key: fieldGeneratedAt, Value: r.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z")},
		{Key: fieldPromptHash, Value: r.PromptHash},
		{Key: fieldOutputHash, Value: r.OutputHash},
	}
	if r.ConversationID != "" {
		fields = append(fields, audit.Field{Key: fieldConversationID, Value: r.ConversationID})
	}

	return audit.EncodeHeader(fields, r.OutputText)
}

// DecodeResult parses a serialized result file back into a ResultTask.
func DecodeResult(content string) *ResultTask {
	fields, body := audit.DecodeHeader(content)

	result := &ResultTask{
		FeatureID:      fields[fieldFeature],
		AgentID:        fields[fieldAgent],
		OutputText:     strings.TrimPrefix(body, "\n"),
		PromptHash:     fields[fieldPromptHash],
		OutputHash:     fields[fieldOutputHash],
		ConversationID: fields[fieldConversationID],
	}
	result.GeneratedAt = parseGeneratedAt(fields[fieldGeneratedAt])
	return result
}

// generatedAtLayouts covers the formats found in result files: the
// second-precision form written here, plus microsecond variants (with
// and without the UTC suffix) written by older producers.
var generatedAtLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.999999Z",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseGeneratedAt(value string) time.Time {
	for _, layout := range generatedAtLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
