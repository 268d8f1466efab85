package workflow

import (
	"context"
	"fmt"
	"os"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
	"github.com/hugo-lorenzo-mato/critic/internal/reviewer"
)

// DocReviewOptions configures an iterative document review.
type DocReviewOptions struct {
	// Doc is the document under review.
	Doc       string
	Reviewers []reviewer.Config
	Cycles    int
	// CommentsDir overrides the derived comments directory.
	CommentsDir string
	// CommentsBase is the derivation base when CommentsDir is empty;
	// defaults to DefaultReviewCommentsBase.
	CommentsBase string
	// Context is extra prompt context, already assembled.
	Context string
}

// ReviewDoc runs review cycles over an existing document: each
// reviewer updates the document in place and leaves comments the next
// reviewer is pointed at.
func (e *Engine) ReviewDoc(ctx context.Context, opts DocReviewOptions) error {
	if _, err := os.Stat(opts.Doc); err != nil {
		return core.ErrNotFound("document", opts.Doc).WithCause(err)
	}
	if len(opts.Reviewers) == 0 {
		return core.ErrValidation(core.CodeNoReviewers, "at least one reviewer is required")
	}

	cdir := opts.CommentsDir
	if cdir == "" {
		base := opts.CommentsBase
		if base == "" {
			base = DefaultReviewCommentsBase
		}
		cdir = CommentsDir(base, opts.Doc)
	}

	e.log.WithWorkflow("review").Info("starting document review",
		"doc", opts.Doc,
		"cycles", opts.Cycles,
		"reviewers", len(opts.Reviewers),
	)

	e.printHeader([]headerField{
		{"Document", opts.Doc},
		{"Comments", cdir},
	}, opts.Reviewers)

	basePrompt := fmt.Sprintf("Please review %s and update it to address concerns raised in the review.", opts.Doc)
	build := func(prevPath, prevName string) string {
		return AppendContext(withPreviousReviewer(basePrompt, "\n\n", prevPath, prevName), opts.Context)
	}

	return e.runLoop(ctx, loopConfig{
		reviewers: opts.Reviewers,
		cycles:    opts.Cycles,
		docPath:   opts.Doc,
		cdir:      cdir,
		label:     "reviewing",
		build:     build,
	})
}
