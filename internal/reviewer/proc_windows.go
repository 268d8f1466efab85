//go:build windows

package reviewer

import (
	"errors"
	"os"
	"os/exec"
)

func configureProcAttr(cmd *exec.Cmd) {
	// Windows has no process groups in the POSIX sense; the agent is
	// killed directly and orphaned children are left to the OS.
}

func terminateTree(p *os.Process) error {
	return killTree(p)
}

func killTree(p *os.Process) error {
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
