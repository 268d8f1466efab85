package workflow

import (
	"strings"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
	"github.com/hugo-lorenzo-mato/critic/internal/fsutil"
)

// BuildContext merges inline context snippets and context files into a
// single block: inline values first, then file contents, joined by
// blank lines.
func BuildContext(inline, files []string) (string, error) {
	parts := make([]string, 0, len(inline)+len(files))
	parts = append(parts, inline...)
	for _, path := range files {
		data, err := fsutil.ReadFileScoped(path)
		if err != nil {
			return "", core.ErrValidation(core.CodeMissingContext,
				"context file not found: "+path).WithCause(err)
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, "\n\n"), nil
}

// AppendContext appends user-supplied context to a prompt, if any.
func AppendContext(prompt, context string) string {
	if context == "" {
		return prompt
	}
	return prompt + "\n\n--- ADDITIONAL CONTEXT ---\n" + context
}
