package workflow

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hugo-lorenzo-mato/critic/internal/fsutil"
	"github.com/hugo-lorenzo-mato/critic/internal/reviewer"
)

// Default bases for per-document comment directories.
const (
	DefaultReviewCommentsBase = "review_comments"
	DefaultPlanCommentsBase   = "plan_comments"
	DefaultTaskCommentsBase   = "task_comments"
)

// CommentsDir returns the per-document comments directory under base.
//
// Documents living in a dedicated directory (tasks/<slug>/plan.md) use
// the directory name as the key so all plans do not collide into
// base/plan/. Documents in generic locations (docs/, todo/, the repo
// root) fall back to the filename stem.
func CommentsDir(base, docPath string) string {
	parent := filepath.Base(filepath.Dir(docPath))
	switch parent {
	case "", ".", string(filepath.Separator), "docs", "todo":
		stem := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
		return filepath.Join(base, stem)
	}
	return filepath.Join(base, parent)
}

// SaveComments persists one reviewer's output under dir and returns
// the file path. Cycle 0 is reserved for creation output, marked with
// a label suffix.
func SaveComments(dir string, cycle int, reviewerName, output, label string) (string, error) {
	tag := ""
	if label != "" {
		tag = "_" + label
	}
	name := fmt.Sprintf("cycle%d_%s%s.txt", cycle, reviewer.Slug(reviewerName), tag)
	path := filepath.Join(dir, name)
	if err := fsutil.WriteFileAtomic(path, []byte(output), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
