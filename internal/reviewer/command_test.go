package reviewer

import (
	"reflect"
	"testing"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
)

func TestSplitCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "plain words",
			in:   "codex exec --json",
			want: []string{"codex", "exec", "--json"},
		},
		{
			name: "collapses whitespace runs",
			in:   "  claude   -p\t--verbose ",
			want: []string{"claude", "-p", "--verbose"},
		},
		{
			name: "single quotes keep spaces",
			in:   "agent --model 'opus 4.6'",
			want: []string{"agent", "--model", "opus 4.6"},
		},
		{
			name: "double quotes keep spaces",
			in:   `agent --prompt "hello world"`,
			want: []string{"agent", "--prompt", "hello world"},
		},
		{
			name: "escaped quote inside double quotes",
			in:   `agent "say \"hi\""`,
			want: []string{"agent", `say "hi"`},
		},
		{
			name: "escaped backslash inside double quotes",
			in:   `agent "a\\b"`,
			want: []string{"agent", `a\b`},
		},
		{
			name: "backslash escapes a space",
			in:   `agent one\ word`,
			want: []string{"agent", "one word"},
		},
		{
			name: "quotes join with adjacent text",
			in:   `agent --flag='value here'`,
			want: []string{"agent", "--flag=value here"},
		},
		{
			name: "empty quotes make an empty arg",
			in:   `agent ''`,
			want: []string{"agent", ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitCommand(tt.in)
			if err != nil {
				t.Fatalf("SplitCommand(%q) error: %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitCommand(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitCommandErrors(t *testing.T) {
	t.Parallel()

	if _, err := SplitCommand(""); err == nil {
		t.Error("expected error for empty command")
	}
	if _, err := SplitCommand("   \t "); err == nil {
		t.Error("expected error for blank command")
	}

	_, err := SplitCommand(`agent "unterminated`)
	if err == nil {
		t.Fatal("expected error for unterminated quote")
	}
	if core.GetCode(err) != core.CodeInvalidConfig {
		t.Errorf("code = %q, want %q", core.GetCode(err), core.CodeInvalidConfig)
	}
}
