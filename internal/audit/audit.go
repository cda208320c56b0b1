// Package audit provides content hashing and the frontmatter header block
// prepended to every queue file. Headers carry identifiers, timestamps, and
// content hashes so that prompts and results are tamper-evident.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// HeaderDelimiter bounds the header block at the top of a queue file.
const HeaderDelimiter = "---"

// headerPattern matches a delimiter-bounded header block at the start of
// content. Non-greedy so the first closing delimiter ends the block.
var headerPattern = regexp.MustCompile(`(?s)\A---[ \t]*\n(.*?)\n---[ \t]*\n`)

// Hash returns the hex-encoded SHA-256 of text's UTF-8 bytes.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Field is a single key/value header entry. Fields are encoded in the order
// given, and values are written verbatim (no escaping).
type Field struct {
	Key   string
	Value string
}

// EncodeHeader builds a header block from the given fields followed by a
// blank line and the body. Fields with an empty value are omitted.
func EncodeHeader(fields []Field, body string) string {
	var sb strings.Builder
	sb.WriteString(HeaderDelimiter)
	sb.WriteByte('\n')
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		sb.WriteString(f.Key)
		sb.WriteString(": ")
		sb.WriteString(f.Value)
		sb.WriteByte('\n')
	}
	sb.WriteString(HeaderDelimiter)
	sb.WriteString("\n\n")
	sb.WriteString(body)
	return sb.String()
}

// DecodeHeader splits content into header fields and body. Content that does
// not begin with a delimiter block decodes to an empty map with the full
// content as body. Lines without a ':' separator are skipped rather than
// failing the parse; values are split on the first ':' only.
func DecodeHeader(content string) (map[string]string, string) {
	fields := make(map[string]string)

	m := headerPattern.FindStringSubmatch(content)
	if m == nil {
		return fields, content
	}

	for _, line := range strings.Split(m[1], "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, ":") {
			continue
		}
		key, value, _ := strings.Cut(line, ":")
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	body := content[len(m[0]):]
	return fields, body
}

// StripHeader returns content with a leading header block removed, if one is
// present.
func StripHeader(content string) string {
	if m := headerPattern.FindString(content); m != "" {
		return content[len(m):]
	}
	return content
}

// Verify reports whether the body of content hashes to expectedHash. The
// header block (if any) is stripped and surrounding whitespace is trimmed
// before hashing, matching how output hashes are computed at write time.
func Verify(content, expectedHash string) bool {
	body := strings.TrimSpace(StripHeader(content))
	return Hash(body) == expectedHash
}
