package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
	"github.com/hugo-lorenzo-mato/critic/internal/reviewer"
)

// DerivePlanPath derives an implementation-plan path from a design doc
// path: a `-design` or `_design` stem suffix becomes `impl-plan` with
// the same separator, anything else gets `-impl-plan` appended before
// the extension.
//
//	docs/autoep-design.md -> docs/autoep-impl-plan.md
//	docs/foo_design.md    -> docs/foo_impl-plan.md
//	docs/my-proposal.md   -> docs/my-proposal-impl-plan.md
func DerivePlanPath(designDoc string) string {
	ext := filepath.Ext(designDoc)
	stem := strings.TrimSuffix(filepath.Base(designDoc), ext)
	dir := filepath.Dir(designDoc)
	for _, sep := range []string{"-", "_"} {
		suffix := sep + "design"
		if strings.HasSuffix(stem, suffix) {
			return filepath.Join(dir, strings.TrimSuffix(stem, suffix)+sep+"impl-plan"+ext)
		}
	}
	return filepath.Join(dir, stem+"-impl-plan"+ext)
}

// PlanReviewOptions configures plan creation and review.
type PlanReviewOptions struct {
	DesignDoc string
	// PlanDoc overrides the path derived from DesignDoc.
	PlanDoc      string
	Reviewers    []reviewer.Config
	Cycles       int
	CommentsDir  string
	CommentsBase string
	Context      string
}

// ReviewPlan generates the implementation plan from the design
// document when the plan file is missing, then runs review cycles
// over it.
func (e *Engine) ReviewPlan(ctx context.Context, opts PlanReviewOptions) error {
	if _, err := os.Stat(opts.DesignDoc); err != nil {
		return core.ErrNotFound("design document", opts.DesignDoc).WithCause(err)
	}
	if len(opts.Reviewers) == 0 {
		return core.ErrValidation(core.CodeNoReviewers, "at least one reviewer is required")
	}
	planDoc := opts.PlanDoc
	if planDoc == "" {
		planDoc = DerivePlanPath(opts.DesignDoc)
	}

	cdir := opts.CommentsDir
	if cdir == "" {
		base := opts.CommentsBase
		if base == "" {
			base = DefaultPlanCommentsBase
		}
		cdir = CommentsDir(base, opts.DesignDoc)
	}

	e.log.WithWorkflow("plan").Info("starting plan review",
		"design_doc", opts.DesignDoc,
		"plan_doc", planDoc,
		"cycles", opts.Cycles,
		"reviewers", len(opts.Reviewers),
	)

	e.printHeader([]headerField{
		{"Design doc", opts.DesignDoc},
		{"Plan doc", planDoc},
		{"Comments", cdir},
	}, opts.Reviewers)

	params := planParams{DesignDoc: opts.DesignDoc, PlanDoc: planDoc}

	creationPrompt, err := e.prompts.render(tmplPlanCreate, params)
	if err != nil {
		return err
	}
	creator := opts.Reviewers[0]
	err = e.createPlanIfMissing(ctx, creation{
		creator:   creator,
		planDoc:   planDoc,
		sourceDoc: opts.DesignDoc,
		banner:    fmt.Sprintf("Generating initial plan with %s", creator.Name),
		prompt:    AppendContext(creationPrompt, opts.Context),
		cdir:      cdir,
	})
	if err != nil {
		return err
	}
	if _, err := os.Stat(planDoc); err != nil {
		return core.ErrState(core.CodePlanMissing,
			fmt.Sprintf("plan file %s was not created, cannot proceed with review cycles", planDoc))
	}

	reviewPrompt, err := e.prompts.render(tmplPlanReview, params)
	if err != nil {
		return err
	}
	build := func(prevPath, prevName string) string {
		return AppendContext(withPreviousReviewer(reviewPrompt, "\n", prevPath, prevName), opts.Context)
	}

	return e.runLoop(ctx, loopConfig{
		reviewers: opts.Reviewers,
		cycles:    opts.Cycles,
		docPath:   planDoc,
		cdir:      cdir,
		label:     "reviewing plan",
		build:     build,
	})
}
