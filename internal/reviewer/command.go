package reviewer

import (
	"strings"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
)

// SplitCommand breaks a command line into argv the way a POSIX shell
// tokenizes words: whitespace separates arguments, single quotes keep
// their contents literal, double quotes allow backslash escapes for
// the quote and the backslash itself.
//
// Reviewer commands run without a shell, so this is the only quoting
// layer a preset's command string gets.
func SplitCommand(command string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inWord  bool
	)

	runes := []rune(command)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\'' || c == '"':
			quote := c
			inWord = true
			i++
			closed := false
			for i < len(runes) {
				if runes[i] == quote {
					closed = true
					break
				}
				if quote == '"' && runes[i] == '\\' && i+1 < len(runes) {
					next := runes[i+1]
					if next == '"' || next == '\\' {
						current.WriteRune(next)
						i += 2
						continue
					}
				}
				current.WriteRune(runes[i])
				i++
			}
			if !closed {
				return nil, core.ErrValidation(core.CodeInvalidConfig,
					"command has an unterminated quote: "+command)
			}
		case c == '\\' && i+1 < len(runes):
			inWord = true
			current.WriteRune(runes[i+1])
			i++
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		default:
			inWord = true
			current.WriteRune(c)
		}
	}
	if inWord {
		args = append(args, current.String())
	}

	if len(args) == 0 {
		return nil, core.ErrValidation(core.CodeEmptyCommand, "command is empty")
	}
	return args, nil
}
