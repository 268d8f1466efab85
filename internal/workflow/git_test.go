package workflow

import (
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
)

// initTestRepo creates a throwaway repository with a local identity so
// commits work without touching global config.
func initTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "-q")
	run("config", "user.name", "Test User")
	run("config", "user.email", "test@example.com")
	run("config", "commit.gpgsign", "false")
	return dir
}

func gitOut(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("git %v: %v", args, err)
	}
	return strings.TrimSpace(string(out))
}

func TestCommitDoc(t *testing.T) {
	t.Parallel()

	dir := initTestRepo(t)
	writeFile(t, filepath.Join(dir, "design.md"), "# Design\n")

	c := NewCommitter(dir)
	msg := "update design.md by Claude CLI (cycle 1)"
	if err := c.CommitDoc(t.Context(), "design.md", msg); err != nil {
		t.Fatalf("CommitDoc: %v", err)
	}

	if subject := gitOut(t, dir, "log", "-1", "--format=%s"); subject != msg {
		t.Errorf("subject = %q, want %q", subject, msg)
	}
	if body := gitOut(t, dir, "log", "-1", "--format=%B"); !strings.Contains(body, "Signed-off-by:") {
		t.Errorf("missing sign-off trailer:\n%s", body)
	}
}

func TestCommitDocOnlyTargetFile(t *testing.T) {
	t.Parallel()

	dir := initTestRepo(t)
	writeFile(t, filepath.Join(dir, "design.md"), "# Design\n")
	writeFile(t, filepath.Join(dir, "other.txt"), "unrelated\n")

	// Stage an unrelated file; commit --only must keep it out.
	cmd := exec.Command("git", "add", "other.txt")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git add: %v\n%s", err, out)
	}

	c := NewCommitter(dir)
	if err := c.CommitDoc(t.Context(), "design.md", "update design.md"); err != nil {
		t.Fatalf("CommitDoc: %v", err)
	}

	files := gitOut(t, dir, "show", "--name-only", "--format=", "HEAD")
	if files != "design.md" {
		t.Errorf("committed files = %q, want only design.md", files)
	}
}

func TestCommitDocOutsideRepo(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	c := NewCommitter(t.TempDir())
	err := c.CommitDoc(t.Context(), "design.md", "msg")
	if err == nil {
		t.Fatal("expected an error outside a repository")
	}
	if core.GetCode(err) != core.CodeGitFailed {
		t.Errorf("code = %q, want %q", core.GetCode(err), core.CodeGitFailed)
	}
}
