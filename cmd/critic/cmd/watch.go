package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/critic/internal/workflow"
)

var watchCmd = &cobra.Command{
	Use:   "watch [doc]",
	Short: "Follow a comments directory and render new comments",
	Long: `Watch the comments directory for a document and render each new
comment file as it is written. Useful in a second terminal while a
review loop runs.

Comment files are written atomically, so every file rendered here is
complete.

Examples:
  critic watch
  critic watch docs/cache-design.md
  critic watch --comments-dir plan_comments/cache_design`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var (
	watchRaw         bool
	watchCommentsDir string
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchRaw, "raw", false, "Print comment files without markdown rendering")
	watchCmd.Flags().StringVar(&watchCommentsDir, "comments-dir", "",
		"Comments directory to watch (default: derived from the document)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context(), cmd.ErrOrStderr())
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	doc := cfg.Review.Doc
	if len(args) > 0 {
		doc = args[0]
	}

	dir := watchCommentsDir
	if dir == "" {
		dir = cfg.Review.CommentsDir
	}
	if dir == "" {
		dir = workflow.CommentsDir(workflow.DefaultReviewCommentsBase, doc)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating comments directory %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Comment files land via rename, so a create event means
			// the file is complete.
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !isCommentFile(name) {
				continue
			}
			data, err := os.ReadFile(event.Name) // #nosec G304 -- path comes from the watched directory
			if err != nil {
				log.Warn("reading comment file", "path", event.Name, "error", err)
				continue
			}
			fmt.Fprintf(out, "\n%s\n", showPathStyle.Render(event.Name))
			if err := renderMarkdown(out, string(data), watchRaw); err != nil {
				return err
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", werr)
		}
	}
}
