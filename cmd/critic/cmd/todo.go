package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/critic/internal/workflow"
)

var todoCmd = &cobra.Command{
	Use:   "todo <slug>",
	Short: "Create and review an action plan from a TODO item",
	Long: `Expand a TODO item into a reviewed action plan.

Reads todo/<slug>.md, generates tasks/<slug>/plan.md with the first
reviewer when the plan does not exist yet, then runs review cycles over
the plan. --cycles 0 stops after generation.

Examples:
  # Plan and review the add-metrics TODO item
  critic todo add-metrics --reviewer claude --reviewer codex

  # Generate the plan only
  critic todo add-metrics --reviewer claude --cycles 0`,
	Args: cobra.ExactArgs(1),
	RunE: runTodo,
}

var (
	todoFlags   loopFlags
	todoPlanDoc string
)

func init() {
	rootCmd.AddCommand(todoCmd)
	addLoopFlags(todoCmd, &todoFlags)
	todoCmd.Flags().StringVar(&todoPlanDoc, "plan-doc", "",
		"Plan file path (default: tasks/<slug>/plan.md)")
}

func runTodo(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context(), cmd.ErrOrStderr())
	defer cancel()

	sess, err := newSession(cmd, &todoFlags, true)
	if err != nil {
		return err
	}

	slug := args[0]
	todoDoc := workflow.TodoDocPath(sess.cfg.Review.TodoDir, slug)
	planDoc := todoPlanDoc
	if planDoc == "" {
		planDoc = workflow.TaskPlanPath(sess.cfg.Review.TasksDir, slug)
	}

	extra, err := workflow.BuildContext(todoFlags.contexts, todoFlags.contextFiles)
	if err != nil {
		return err
	}

	reviewers, err := resolveReviewers(cmd, sess.cfg, sess.registry, &todoFlags)
	if err != nil {
		return err
	}

	return runWithMonitor(ctx, sess.monitor, func(ctx context.Context) error {
		return sess.engine.ReviewTodoPlan(ctx, workflow.TodoPlanOptions{
			TodoDoc:     todoDoc,
			PlanDoc:     planDoc,
			Reviewers:   reviewers,
			Cycles:      resolveCycles(cmd, sess.cfg, &todoFlags),
			CommentsDir: commentsDirFor(sess.cfg, &todoFlags),
			Context:     extra,
		})
	})
}
