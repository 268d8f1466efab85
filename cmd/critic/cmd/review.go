package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/critic/internal/workflow"
)

var reviewCmd = &cobra.Command{
	Use:   "review [doc]",
	Short: "Run review cycles over a design document",
	Long: `Run iterative review cycles over a design document.

Each cycle runs every reviewer in turn: the reviewer updates the
document in place and leaves comments the next reviewer is pointed at,
so perspectives stay independent while concerns accumulate. The
document is committed after each reviewer unless --no-commit is given.

Examples:
  # Review the default document with two chosen presets
  critic review --reviewer claude --reviewer codex

  # One cycle over a specific document, no commits
  critic review docs/cache-design.md --cycles 1 --no-commit

  # A custom reviewer command alongside a preset
  critic review --reviewer claude \
    --reviewer-cmd "mytool --review" --reviewer-name "My Tool"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReview,
}

var reviewFlags loopFlags

func init() {
	rootCmd.AddCommand(reviewCmd)
	addLoopFlags(reviewCmd, &reviewFlags)
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context(), cmd.ErrOrStderr())
	defer cancel()

	sess, err := newSession(cmd, &reviewFlags, true)
	if err != nil {
		return err
	}

	doc := sess.cfg.Review.Doc
	if len(args) > 0 {
		doc = args[0]
	}

	extra, err := workflow.BuildContext(reviewFlags.contexts, reviewFlags.contextFiles)
	if err != nil {
		return err
	}

	reviewers, err := resolveReviewers(cmd, sess.cfg, sess.registry, &reviewFlags)
	if err != nil {
		return err
	}

	return runWithMonitor(ctx, sess.monitor, func(ctx context.Context) error {
		return sess.engine.ReviewDoc(ctx, workflow.DocReviewOptions{
			Doc:         doc,
			Reviewers:   reviewers,
			Cycles:      resolveCycles(cmd, sess.cfg, &reviewFlags),
			CommentsDir: commentsDirFor(sess.cfg, &reviewFlags),
			Context:     extra,
		})
	})
}
