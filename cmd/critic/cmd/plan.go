package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/critic/internal/workflow"
)

var planCmd = &cobra.Command{
	Use:   "plan [design-doc]",
	Short: "Create and review an implementation plan",
	Long: `Create an implementation plan from a design document, then run
review cycles over it.

When the plan file does not exist the first reviewer generates it from
the design document; the plan path is derived from the design doc name
(foo-design.md becomes foo-impl-plan.md) unless --plan-doc is given.
Review cycles then work the same way as 'critic review', against the
plan instead of the design document.

Examples:
  # Plan from the default design doc
  critic plan --reviewer claude --reviewer codex

  # Explicit plan path, generation only
  critic plan docs/cache-design.md --plan-doc docs/cache-plan.md --cycles 0`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

var (
	planFlags   loopFlags
	planDocFlag string
)

func init() {
	rootCmd.AddCommand(planCmd)
	addLoopFlags(planCmd, &planFlags)
	planCmd.Flags().StringVar(&planDocFlag, "plan-doc", "",
		"Plan file path (default: derived from the design doc)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context(), cmd.ErrOrStderr())
	defer cancel()

	sess, err := newSession(cmd, &planFlags, true)
	if err != nil {
		return err
	}

	designDoc := sess.cfg.Review.Doc
	if len(args) > 0 {
		designDoc = args[0]
	}
	planDoc := planDocFlag
	if planDoc == "" {
		planDoc = sess.cfg.Review.PlanDoc
	}

	extra, err := workflow.BuildContext(planFlags.contexts, planFlags.contextFiles)
	if err != nil {
		return err
	}

	reviewers, err := resolveReviewers(cmd, sess.cfg, sess.registry, &planFlags)
	if err != nil {
		return err
	}

	return runWithMonitor(ctx, sess.monitor, func(ctx context.Context) error {
		return sess.engine.ReviewPlan(ctx, workflow.PlanReviewOptions{
			DesignDoc:   designDoc,
			PlanDoc:     planDoc,
			Reviewers:   reviewers,
			Cycles:      resolveCycles(cmd, sess.cfg, &planFlags),
			CommentsDir: commentsDirFor(sess.cfg, &planFlags),
			Context:     extra,
		})
	})
}
