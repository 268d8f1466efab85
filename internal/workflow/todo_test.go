package workflow

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
	"github.com/hugo-lorenzo-mato/critic/internal/reviewer"
)

func TestTodoPaths(t *testing.T) {
	t.Parallel()

	if got, want := TodoDocPath("", "fix-login"), filepath.Join("todo", "fix-login.md"); got != want {
		t.Errorf("TodoDocPath = %q, want %q", got, want)
	}
	if got, want := TodoDocPath("items", "fix-login"), filepath.Join("items", "fix-login.md"); got != want {
		t.Errorf("TodoDocPath = %q, want %q", got, want)
	}
	if got, want := TaskPlanPath("", "fix-login"), filepath.Join("tasks", "fix-login", "plan.md"); got != want {
		t.Errorf("TaskPlanPath = %q, want %q", got, want)
	}
	if got, want := TaskPlanPath("work", "fix-login"), filepath.Join("work", "fix-login", "plan.md"); got != want {
		t.Errorf("TaskPlanPath = %q, want %q", got, want)
	}
}

func TestReviewTodoPlanCreation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	t.Parallel()

	dir := t.TempDir()
	todoDoc := filepath.Join(dir, "todo", "fix-login.md")
	writeFile(t, todoDoc, "# Fix login\n")
	plan := filepath.Join(dir, "tasks", "fix-login", "plan.md")
	cdir := filepath.Join(dir, "comments")

	var out bytes.Buffer
	e := newTestEngine(t, EngineOptions{Out: &out})

	// The task directory does not exist yet; the engine creates it so
	// the agent can write the plan file into it.
	creator := agentConfig("Plan Writer", fmt.Sprintf(`sh -c "echo steps > %s; echo drafted"`, plan))
	err := e.ReviewTodoPlan(t.Context(), TodoPlanOptions{
		TodoDoc:     todoDoc,
		PlanDoc:     plan,
		Reviewers:   []reviewer.Config{creator},
		Cycles:      0,
		CommentsDir: cdir,
	})
	if err != nil {
		t.Fatalf("ReviewTodoPlan: %v", err)
	}

	if _, err := os.Stat(plan); err != nil {
		t.Fatalf("plan not created: %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"TODO doc:   " + todoDoc,
		"Plan doc:   " + plan,
		"Task dir:   " + filepath.Dir(plan),
		"Comments:   " + cdir,
		"Generating initial action plan with Plan Writer",
		"[Saved creation output to " + filepath.Join(cdir, "cycle0_plan_writer_creation.txt") + "]",
		"[Skipping review cycles (--cycles 0)]",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Cycle 1/") {
		t.Errorf("review cycles ran despite --cycles 0:\n%s", text)
	}
}

func TestReviewTodoPlanCycles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	todoDoc := filepath.Join(dir, "todo", "fix-login.md")
	writeFile(t, todoDoc, "# Fix login\n")
	plan := filepath.Join(dir, "tasks", "fix-login", "plan.md")
	writeFile(t, plan, "# Plan\n")
	cdir := filepath.Join(dir, "comments")

	var out bytes.Buffer
	e := newTestEngine(t, EngineOptions{Out: &out})

	err := e.ReviewTodoPlan(t.Context(), TodoPlanOptions{
		TodoDoc:     todoDoc,
		PlanDoc:     plan,
		Reviewers:   []reviewer.Config{agentConfig("Echo One", "echo ok")},
		Cycles:      1,
		CommentsDir: cdir,
	})
	if err != nil {
		t.Fatalf("ReviewTodoPlan: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "[Plan already exists at "+plan+", skipping creation]") {
		t.Errorf("missing skip notice:\n%s", text)
	}
	if !strings.Contains(text, "Cycle 1/1 — Echo One reviewing action plan") {
		t.Errorf("missing cycle banner:\n%s", text)
	}
	if _, err := os.Stat(filepath.Join(cdir, "cycle1_echo_one.txt")); err != nil {
		t.Errorf("review comments missing: %v", err)
	}
}

func TestReviewTodoPlanValidation(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, EngineOptions{})

	err := e.ReviewTodoPlan(t.Context(), TodoPlanOptions{
		TodoDoc:   filepath.Join(t.TempDir(), "absent.md"),
		PlanDoc:   "plan.md",
		Reviewers: []reviewer.Config{agentConfig("Echo", "echo hi")},
	})
	if !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("category = %q, want %q", core.GetCategory(err), core.ErrCatNotFound)
	}

	todoDoc := filepath.Join(t.TempDir(), "todo.md")
	writeFile(t, todoDoc, "# Item\n")
	err = e.ReviewTodoPlan(t.Context(), TodoPlanOptions{
		TodoDoc:   todoDoc,
		Reviewers: []reviewer.Config{agentConfig("Echo", "echo hi")},
	})
	if core.GetCode(err) != core.CodeInvalidConfig {
		t.Errorf("code = %q, want %q", core.GetCode(err), core.CodeInvalidConfig)
	}
}
