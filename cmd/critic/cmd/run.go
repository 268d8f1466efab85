package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
	"github.com/hugo-lorenzo-mato/critic/internal/fsutil"
	"github.com/hugo-lorenzo-mato/critic/internal/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run a single reviewer once and print the extracted text",
	Long: `Run one supervised reviewer invocation and print the extracted
review text to stdout. Diagnostics go to stderr, so the output can be
piped or redirected.

The prompt comes from the positional argument, from --prompt-file, or
from stdin when --prompt-file is '-'.

Examples:
  critic run "Summarize the open concerns in docs/cache-design.md" --reviewer claude

  cat prompt.txt | critic run --prompt-file - --reviewer codex > answer.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

var (
	runFlags      loopFlags
	runPromptFile string
)

func init() {
	rootCmd.AddCommand(runCmd)
	addReviewerFlags(runCmd, &runFlags)
	addLimitFlags(runCmd, &runFlags)
	runCmd.Flags().StringVar(&runPromptFile, "prompt-file", "",
		"Read the prompt from this file ('-' for stdin)")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context(), cmd.ErrOrStderr())
	defer cancel()

	sess, err := newSession(cmd, &runFlags, false)
	if err != nil {
		return err
	}

	prompt, err := resolvePrompt(cmd, args)
	if err != nil {
		return err
	}

	extra, err := workflow.BuildContext(runFlags.contexts, runFlags.contextFiles)
	if err != nil {
		return err
	}
	prompt = workflow.AppendContext(prompt, extra)

	rc, err := resolveOneReviewer(cmd, sess.cfg, sess.registry, &runFlags)
	if err != nil {
		return err
	}

	return runWithMonitor(ctx, sess.monitor, func(ctx context.Context) error {
		outcome, err := sess.engine.RunOnce(ctx, rc, prompt)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), outcome.Text)
		return err
	})
}

func resolvePrompt(cmd *cobra.Command, args []string) (string, error) {
	if runPromptFile != "" && len(args) > 0 {
		return "", core.ErrValidation(core.CodeInvalidConfig,
			"prompt given both as an argument and via --prompt-file")
	}

	var prompt string
	switch {
	case runPromptFile == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading prompt from stdin: %w", err)
		}
		prompt = string(data)
	case runPromptFile != "":
		data, err := fsutil.ReadFileScoped(runPromptFile)
		if err != nil {
			return "", fmt.Errorf("reading prompt file: %w", err)
		}
		prompt = string(data)
	case len(args) > 0:
		prompt = args[0]
	default:
		return "", core.ErrValidation(core.CodeEmptyPrompt,
			"a prompt is required (positional argument or --prompt-file)")
	}

	if strings.TrimSpace(prompt) == "" {
		return "", core.ErrValidation(core.CodeEmptyPrompt, "prompt is empty")
	}
	return prompt, nil
}
