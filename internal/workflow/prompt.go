package workflow

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed prompts/*.md.tmpl
var promptsFS embed.FS

// Template names under prompts/.
const (
	tmplPlanCreate = "plan-create.md.tmpl"
	tmplPlanReview = "plan-review.md.tmpl"
	tmplTodoCreate = "todo-create.md.tmpl"
	tmplTodoReview = "todo-review.md.tmpl"
)

// promptRenderer renders the embedded workflow prompt templates.
// Templates are parsed once at engine construction and read-only
// afterwards.
type promptRenderer struct {
	templates *template.Template
}

func newPromptRenderer() (*promptRenderer, error) {
	tmpl, err := template.ParseFS(promptsFS, "prompts/*.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing prompt templates: %w", err)
	}
	return &promptRenderer{templates: tmpl}, nil
}

// planParams feeds the plan creation and review templates.
type planParams struct {
	DesignDoc string
	PlanDoc   string
}

// todoParams feeds the action-plan creation and review templates.
type todoParams struct {
	TodoDoc string
	PlanDoc string
}

func (r *promptRenderer) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("executing template %s: %w", name, err)
	}
	return buf.String(), nil
}

// withPreviousReviewer appends the handoff paragraph pointing the next
// reviewer at the previous reviewer's comments file. sep separates it
// from the base prompt.
func withPreviousReviewer(base, sep, prevPath, prevName string) string {
	if prevPath == "" || prevName == "" {
		return base
	}
	return base + sep + fmt.Sprintf(
		"The previous reviewer (%s) left comments in %s. "+
			"Please read that file for their feedback.\n\n"+
			"IMPORTANT: In addition to addressing the previous reviewer's "+
			"feedback, actively look for issues, concerns, and improvements "+
			"that the previous reviewer did NOT mention. Bring your own "+
			"independent perspective — do not limit your review to only the "+
			"points already raised.",
		prevName, prevPath)
}
