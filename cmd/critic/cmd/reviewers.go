package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var reviewersCmd = &cobra.Command{
	Use:   "reviewers",
	Short: "List reviewer presets",
	Long: `List the available reviewer presets with their commands, output
probes and fallback edges. Presets from the configured reviewers file
are merged over the built-in ones.`,
	RunE: runReviewers,
}

var (
	reviewerKeyStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	reviewerNameStyle  = lipgloss.NewStyle().Bold(true)
	reviewerLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func init() {
	rootCmd.AddCommand(reviewersCmd)
}

func runReviewers(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := newRegistry(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, rc := range reg.All() {
		fmt.Fprintf(out, "%s  %s\n",
			reviewerKeyStyle.Render(rc.Key),
			reviewerNameStyle.Render(rc.Name))
		fmt.Fprintf(out, "    %s %s\n", reviewerLabelStyle.Render("command:"), rc.Command)
		fmt.Fprintf(out, "    %s %s\n", reviewerLabelStyle.Render("probe:"), rc.Probe)
		if rc.Fallback != "" {
			fmt.Fprintf(out, "    %s %s\n", reviewerLabelStyle.Render("fallback:"), rc.Fallback)
		}
		if rc.RateLimitFallback != "" {
			fmt.Fprintf(out, "    %s %s\n", reviewerLabelStyle.Render("rate-limit fallback:"), rc.RateLimitFallback)
		}
		fmt.Fprintln(out)
	}

	if len(cfg.Reviewers.Default) > 0 {
		fmt.Fprintf(out, "Default lineup: %v\n", cfg.Reviewers.Default)
	}
	return nil
}
