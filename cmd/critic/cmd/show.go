package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/critic/internal/clip"
	"github.com/hugo-lorenzo-mato/critic/internal/core"
	"github.com/hugo-lorenzo-mato/critic/internal/workflow"
)

var showCmd = &cobra.Command{
	Use:   "show [doc]",
	Short: "Render the latest reviewer comments",
	Long: `Find the most recent saved reviewer comments for a document and
render them as markdown in the terminal.

Without --comments-dir the review, plan and task comment directories
derived from the document are all searched and the newest comment file
wins.

Examples:
  critic show
  critic show docs/cache-design.md --copy
  critic show --comments-dir plan_comments/cache_design --raw`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

var (
	showRaw         bool
	showCopy        bool
	showCommentsDir string

	showPathStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print the comment file without markdown rendering")
	showCmd.Flags().BoolVar(&showCopy, "copy", false, "Copy the comment text to the clipboard")
	showCmd.Flags().StringVar(&showCommentsDir, "comments-dir", "",
		"Comments directory to search (default: derived from the document)")
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	doc := cfg.Review.Doc
	if len(args) > 0 {
		doc = args[0]
	}

	path, err := latestComment(commentDirsFor(cfg.Review.CommentsDir, doc, showCommentsDir))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path derives from the comments dir listing
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	text := string(data)

	errOut := cmd.ErrOrStderr()
	fmt.Fprintln(errOut, showPathStyle.Render(path))

	if err := renderMarkdown(cmd.OutOrStdout(), text, showRaw); err != nil {
		return err
	}

	if showCopy {
		reportCopy(errOut, text)
	}
	return nil
}

// commentDirsFor lists the directories to search for comment files,
// most specific first.
func commentDirsFor(configured, doc, override string) []string {
	if override != "" {
		return []string{override}
	}
	dirs := []string{}
	if configured != "" {
		dirs = append(dirs, configured)
	}
	return append(dirs,
		workflow.CommentsDir(workflow.DefaultReviewCommentsBase, doc),
		workflow.CommentsDir(workflow.DefaultPlanCommentsBase, doc),
		workflow.CommentsDir(workflow.DefaultTaskCommentsBase, doc),
	)
}

// latestComment returns the newest cycle*.txt file across dirs.
func latestComment(dirs []string) (string, error) {
	var newest string
	var newestTime time.Time
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !isCommentFile(e.Name()) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if newest == "" || info.ModTime().After(newestTime) {
				newest = filepath.Join(dir, e.Name())
				newestTime = info.ModTime()
			}
		}
	}
	if newest == "" {
		return "", core.ErrNotFound("comments", strings.Join(dirs, ", "))
	}
	return newest, nil
}

func isCommentFile(name string) bool {
	return strings.HasPrefix(name, "cycle") && strings.HasSuffix(name, ".txt")
}

// renderMarkdown renders text with glamour, falling back to plain
// output when rendering is off or fails.
func renderMarkdown(out io.Writer, text string, raw bool) error {
	if !raw {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err == nil {
			if rendered, rerr := renderer.Render(text); rerr == nil {
				_, werr := fmt.Fprint(out, rendered)
				return werr
			}
		}
	}
	_, err := fmt.Fprintln(out, strings.TrimRight(text, "\n"))
	return err
}

// reportCopy copies text for the user and says where it went.
func reportCopy(errOut io.Writer, text string) {
	res, err := clip.WriteAll(text)
	if err != nil {
		fmt.Fprintf(errOut, "Copy failed: %v\n", err)
		return
	}
	switch res.Method {
	case clip.MethodNative:
		fmt.Fprintln(errOut, "Copied to clipboard.")
	case clip.MethodOSC52:
		fmt.Fprintln(errOut, "Sent to terminal clipboard (OSC52).")
	case clip.MethodFile:
		fmt.Fprintf(errOut, "Clipboard unavailable; saved to %s\n", res.FilePath)
	}
}
