package patch

import (
	"fmt"
	"regexp"
	"strings"
)

// blockPattern matches fenced code blocks whose info line carries a
// path= annotation, e.g. ```python path=src/a.py action=update.
// Blocks without path= are illustrative snippets, not instructions.
var blockPattern = regexp.MustCompile("(?s)```(\\w+)[ \\t]+path=(\\S+)(?:[ \\t]+action=(\\w+))?[ \\t]*\\n(.*?)```")

// Parse scans markdown for annotated code blocks and returns them as an
// ordered artifact. Malformed annotations degrade to defaults with a
// warning rather than failing the parse; multiple blocks for the same
// path are kept as separate sequential patches.
func Parse(markdown string) *Artifact {
	artifact := &Artifact{}

	for _, match := range blockPattern.FindAllStringSubmatch(markdown, -1) {
		language, path, actionStr, content := match[1], match[2], match[3], match[4]

		action := Action(strings.ToLower(actionStr))
		switch {
		case actionStr == "":
			action = ActionCreate
			artifact.Warnings = append(artifact.Warnings,
				fmt.Sprintf("%s: no action given, defaulting to create", path))
		case !action.IsValid():
			artifact.Warnings = append(artifact.Warnings,
				fmt.Sprintf("%s: unknown action %q, defaulting to create", path, actionStr))
			action = ActionCreate
		}

		artifact.Patches = append(artifact.Patches, Patch{
			FilePath: path,
			Content:  strings.TrimSuffix(content, "\n"),
			Language: language,
			Action:   action,
		})
	}

	return artifact
}

// HasPatches reports whether markdown contains any annotated blocks,
// without building the full artifact.
func HasPatches(markdown string) bool {
	return blockPattern.MatchString(markdown)
}
