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

func TestDerivePlanPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{filepath.Join("docs", "autoep-design.md"), filepath.Join("docs", "autoep-impl-plan.md")},
		{filepath.Join("docs", "foo_design.md"), filepath.Join("docs", "foo_impl-plan.md")},
		{filepath.Join("docs", "my-proposal.md"), filepath.Join("docs", "my-proposal-impl-plan.md")},
		{"standalone-design.md", "standalone-impl-plan.md"},
		{"design.md", "design-impl-plan.md"},
		{filepath.Join("notes", "arch-design.txt"), filepath.Join("notes", "arch-impl-plan.txt")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := DerivePlanPath(tt.in); got != tt.want {
				t.Errorf("DerivePlanPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReviewPlanCreatesMissingPlan(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	t.Parallel()

	dir := t.TempDir()
	design := filepath.Join(dir, "docs", "autoep-design.md")
	writeFile(t, design, "# Design\n")
	plan := filepath.Join(dir, "docs", "autoep-impl-plan.md")
	cdir := filepath.Join(dir, "comments")

	var out bytes.Buffer
	e := newTestEngine(t, EngineOptions{Out: &out})

	creator := agentConfig("Plan Writer", fmt.Sprintf(`sh -c "echo phases > %s; echo drafted"`, plan))
	err := e.ReviewPlan(t.Context(), PlanReviewOptions{
		DesignDoc: design,
		Reviewers: []reviewer.Config{
			creator,
			agentConfig("Cat Two", "cat"),
		},
		Cycles:      1,
		CommentsDir: cdir,
	})
	if err != nil {
		t.Fatalf("ReviewPlan: %v", err)
	}

	// The plan doc path was derived from the design doc.
	if _, err := os.Stat(plan); err != nil {
		t.Fatalf("plan not created: %v", err)
	}

	created, err := os.ReadFile(filepath.Join(cdir, "cycle0_plan_writer_creation.txt"))
	if err != nil {
		t.Fatalf("creation output: %v", err)
	}
	if !strings.Contains(string(created), "drafted") {
		t.Errorf("creation output = %q", created)
	}

	// The cat reviewer's comments are the review prompt it was fed.
	review, err := os.ReadFile(filepath.Join(cdir, "cycle1_cat_two.txt"))
	if err != nil {
		t.Fatalf("review comments: %v", err)
	}
	if !strings.Contains(string(review), "Update "+plan+" directly") {
		t.Errorf("review prompt missing update instruction:\n%s", review)
	}
	if !strings.Contains(string(review), "The previous reviewer (Plan Writer) left comments in") {
		t.Errorf("review prompt missing handoff:\n%s", review)
	}

	text := out.String()
	for _, want := range []string{
		"Design doc: " + design,
		"Plan doc:   " + plan,
		"Comments:   " + cdir,
		"Generating initial plan with Plan Writer",
		"[Saved creation output to " + filepath.Join(cdir, "cycle0_plan_writer_creation.txt") + "]",
		"Cycle 1/1 — Plan Writer reviewing plan",
		"Cycle 1/1 — Cat Two reviewing plan",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestReviewPlanSkipsExistingPlan(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	design := filepath.Join(dir, "docs", "autoep-design.md")
	writeFile(t, design, "# Design\n")
	plan := filepath.Join(dir, "docs", "autoep-impl-plan.md")
	writeFile(t, plan, "# Plan\n")

	var out bytes.Buffer
	e := newTestEngine(t, EngineOptions{Out: &out})

	err := e.ReviewPlan(t.Context(), PlanReviewOptions{
		DesignDoc:   design,
		Reviewers:   []reviewer.Config{agentConfig("Echo One", "echo ok")},
		Cycles:      1,
		CommentsDir: filepath.Join(dir, "comments"),
	})
	if err != nil {
		t.Fatalf("ReviewPlan: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "[Plan already exists at "+plan+", skipping creation]") {
		t.Errorf("missing skip notice:\n%s", text)
	}
	if strings.Contains(text, "Generating initial plan") {
		t.Errorf("creation ran despite existing plan:\n%s", text)
	}
	if !strings.Contains(text, "Cycle 1/1 — Echo One reviewing plan") {
		t.Errorf("review cycles did not run:\n%s", text)
	}
}

func TestReviewPlanMissingAfterCreation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	design := filepath.Join(dir, "docs", "autoep-design.md")
	writeFile(t, design, "# Design\n")
	cdir := filepath.Join(dir, "comments")

	e := newTestEngine(t, EngineOptions{})

	// The creator never writes the plan file.
	err := e.ReviewPlan(t.Context(), PlanReviewOptions{
		DesignDoc:   design,
		Reviewers:   []reviewer.Config{agentConfig("Echo One", "echo no plan here")},
		Cycles:      1,
		CommentsDir: cdir,
	})
	if err == nil {
		t.Fatal("expected error when the plan file never appears")
	}
	if core.GetCode(err) != core.CodePlanMissing {
		t.Errorf("code = %q, want %q", core.GetCode(err), core.CodePlanMissing)
	}

	// The creation output was still saved for inspection.
	if _, err := os.Stat(filepath.Join(cdir, "cycle0_echo_one_creation.txt")); err != nil {
		t.Errorf("creation output missing: %v", err)
	}
}

func TestReviewPlanMissingDesignDoc(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, EngineOptions{})
	err := e.ReviewPlan(t.Context(), PlanReviewOptions{
		DesignDoc: filepath.Join(t.TempDir(), "absent.md"),
		Reviewers: []reviewer.Config{agentConfig("Echo", "echo hi")},
		Cycles:    1,
	})
	if !core.IsCategory(err, core.ErrCatNotFound) {
		t.Errorf("category = %q, want %q", core.GetCategory(err), core.ErrCatNotFound)
	}
}
