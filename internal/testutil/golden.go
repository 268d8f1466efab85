// Package testutil carries the shared test helpers: golden file
// comparison with scrubbers for the run-specific noise in transcripts
// (run IDs, workdir paths, durations), and small temp-file shortcuts.
package testutil

import (
	"flag"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var update = flag.Bool("update", false, "update golden files")

// Golden compares test output against files under a testdata
// directory. Run tests with -update to rewrite them.
type Golden struct {
	t       *testing.T
	baseDir string
}

// NewGolden creates a golden file helper rooted at baseDir.
func NewGolden(t *testing.T, baseDir string) *Golden {
	return &Golden{
		t:       t,
		baseDir: baseDir,
	}
}

// Assert compares actual output against the named golden file.
func (g *Golden) Assert(name string, actual []byte) {
	g.t.Helper()

	goldenPath := filepath.Join(g.baseDir, name+".golden")

	if *update {
		g.updateGolden(goldenPath, actual)
		return
	}

	expected, err := os.ReadFile(goldenPath)
	if err != nil {
		g.t.Fatalf("reading golden file %s: %v", goldenPath, err)
	}

	if string(actual) != string(expected) {
		g.t.Errorf("output mismatch for %s:\n--- expected ---\n%s\n--- actual ---\n%s",
			name, expected, actual)
	}
}

// AssertString compares string output against the named golden file.
func (g *Golden) AssertString(name, actual string) {
	g.Assert(name, []byte(actual))
}

func (g *Golden) updateGolden(path string, actual []byte) {
	g.t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		g.t.Fatalf("creating golden directory: %v", err)
	}
	if err := os.WriteFile(path, actual, 0o644); err != nil {
		g.t.Fatalf("writing golden file: %v", err)
	}
	g.t.Logf("updated golden file: %s", path)
}

// Normalize prepares output for golden comparison: LF line endings, no
// trailing whitespace, no trailing newlines.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// ScrubTimestamps replaces timestamps in output.
func ScrubTimestamps(s string) string {
	patterns := []string{
		`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}[^\s]*`, // RFC3339 as in JSON logs
		`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`,
		`\d{2}:\d{2}:\d{2}`,
	}

	result := s
	for _, pattern := range patterns {
		re := regexp.MustCompile(pattern)
		result = re.ReplaceAllString(result, "[TIMESTAMP]")
	}
	return result
}

// ScrubDurations replaces elapsed-time renderings like "1.2s" or
// "4m10s" in output.
func ScrubDurations(s string) string {
	re := regexp.MustCompile(`\d+(\.\d+)?(ns|us|µs|ms|s|m|h)+`)
	return re.ReplaceAllString(s, "[DURATION]")
}

// ScrubPaths replaces basePath, typically a per-run working
// directory, in output.
func ScrubPaths(s, basePath string) string {
	return strings.ReplaceAll(s, basePath, "[WORKDIR]")
}

// ScrubUUIDs replaces UUIDs in output; run identifiers are UUIDs.
func ScrubUUIDs(s string) string {
	re := regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	return re.ReplaceAllString(s, "[UUID]")
}

// ScrubHashes replaces full git commit hashes in output.
func ScrubHashes(s string) string {
	re := regexp.MustCompile(`[0-9a-f]{40}`)
	return re.ReplaceAllString(s, "[HASH]")
}

// ScrubAll applies every scrubber and normalizes the result.
func ScrubAll(s, basePath string) string {
	result := s
	result = ScrubTimestamps(result)
	result = ScrubDurations(result)
	result = ScrubPaths(result, basePath)
	result = ScrubUUIDs(result)
	result = ScrubHashes(result)
	return Normalize(result)
}
