package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
	"github.com/hugo-lorenzo-mato/critic/internal/reviewer"
)

// Default locations for TODO items and their generated task plans.
const (
	DefaultTodoDir  = "todo"
	DefaultTasksDir = "tasks"
)

// TodoDocPath returns the TODO file for a slug.
func TodoDocPath(todoDir, slug string) string {
	if todoDir == "" {
		todoDir = DefaultTodoDir
	}
	return filepath.Join(todoDir, slug+".md")
}

// TaskPlanPath returns the default plan file for a slug.
func TaskPlanPath(tasksDir, slug string) string {
	if tasksDir == "" {
		tasksDir = DefaultTasksDir
	}
	return filepath.Join(tasksDir, slug, "plan.md")
}

// TodoPlanOptions configures action-plan creation and review for one
// TODO item.
type TodoPlanOptions struct {
	TodoDoc      string
	PlanDoc      string
	Reviewers    []reviewer.Config
	Cycles       int
	CommentsDir  string
	CommentsBase string
	Context      string
}

// ReviewTodoPlan expands a TODO item into an action plan under the
// task directory, then runs review cycles over it. Cycles <= 0 stops
// after creation.
func (e *Engine) ReviewTodoPlan(ctx context.Context, opts TodoPlanOptions) error {
	if _, err := os.Stat(opts.TodoDoc); err != nil {
		return core.ErrNotFound("TODO document", opts.TodoDoc).WithCause(err)
	}
	if len(opts.Reviewers) == 0 {
		return core.ErrValidation(core.CodeNoReviewers, "at least one reviewer is required")
	}
	if opts.PlanDoc == "" {
		return core.ErrValidation(core.CodeInvalidConfig, "plan doc path is required")
	}

	cdir := opts.CommentsDir
	if cdir == "" {
		base := opts.CommentsBase
		if base == "" {
			base = DefaultTaskCommentsBase
		}
		cdir = CommentsDir(base, opts.PlanDoc)
	}

	e.log.WithWorkflow("todo").Info("starting action-plan review",
		"todo_doc", opts.TodoDoc,
		"plan_doc", opts.PlanDoc,
		"cycles", opts.Cycles,
		"reviewers", len(opts.Reviewers),
	)

	e.printHeader([]headerField{
		{"TODO doc", opts.TodoDoc},
		{"Plan doc", opts.PlanDoc},
		{"Task dir", filepath.Dir(opts.PlanDoc)},
		{"Comments", cdir},
	}, opts.Reviewers)

	params := todoParams{TodoDoc: opts.TodoDoc, PlanDoc: opts.PlanDoc}

	creationPrompt, err := e.prompts.render(tmplTodoCreate, params)
	if err != nil {
		return err
	}
	creator := opts.Reviewers[0]
	err = e.createPlanIfMissing(ctx, creation{
		creator:     creator,
		planDoc:     opts.PlanDoc,
		sourceDoc:   opts.TodoDoc,
		banner:      fmt.Sprintf("Generating initial action plan with %s", creator.Name),
		prompt:      AppendContext(creationPrompt, opts.Context),
		cdir:        cdir,
		mkdirParent: true,
	})
	if err != nil {
		return err
	}
	if _, err := os.Stat(opts.PlanDoc); err != nil {
		return core.ErrState(core.CodePlanMissing,
			fmt.Sprintf("plan file %s was not created, cannot proceed with review cycles", opts.PlanDoc))
	}

	if opts.Cycles <= 0 {
		fmt.Fprint(e.out, "\n[Skipping review cycles (--cycles 0)]\n")
		return nil
	}

	reviewPrompt, err := e.prompts.render(tmplTodoReview, params)
	if err != nil {
		return err
	}
	build := func(prevPath, prevName string) string {
		return AppendContext(withPreviousReviewer(reviewPrompt, "\n", prevPath, prevName), opts.Context)
	}

	return e.runLoop(ctx, loopConfig{
		reviewers: opts.Reviewers,
		cycles:    opts.Cycles,
		docPath:   opts.PlanDoc,
		cdir:      cdir,
		label:     "reviewing action plan",
		build:     build,
	})
}
