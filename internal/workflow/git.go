package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/critic/internal/core"
)

const gitTimeout = 30 * time.Second

// Committer records per-cycle document commits.
type Committer struct {
	dir     string
	timeout time.Duration
}

// NewCommitter returns a committer running git in dir. An empty dir
// uses the process working directory.
func NewCommitter(dir string) *Committer {
	return &Committer{dir: dir, timeout: gitTimeout}
}

// CommitDoc stages docPath and creates a signed commit. `commit --only`
// keeps the commit to docPath even when other files happen to be
// staged in the index.
func (c *Committer) CommitDoc(ctx context.Context, docPath, message string) error {
	if _, err := c.run(ctx, "add", docPath); err != nil {
		return err
	}
	_, err := c.run(ctx, "commit", "--only", docPath, "-s", "-m", message)
	return err
}

func (c *Committer) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	if c.dir != "" {
		cmd.Dir = c.dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", core.ErrExecution(core.CodeGitFailed,
				fmt.Sprintf("git %s timed out", args[0]))
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", core.ErrExecution(core.CodeGitFailed,
			fmt.Sprintf("git %s: %s", strings.Join(args, " "), detail)).WithCause(err)
	}

	return strings.TrimSpace(stdout.String()), nil
}
