//go:build !windows

package reviewer

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// configureProcAttr puts the agent in its own process group so that
// termination signals reach the CLI and every child it spawned.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateTree asks the agent's process group to exit.
func terminateTree(p *os.Process) error {
	return signalTree(p, syscall.SIGTERM)
}

// killTree forcibly ends the agent's process group.
func killTree(p *os.Process) error {
	return signalTree(p, syscall.SIGKILL)
}

func signalTree(p *os.Process, sig syscall.Signal) error {
	pgid, err := syscall.Getpgid(p.Pid)
	if err != nil {
		// No group (already reaped, or Setpgid failed): best effort
		// on the process itself.
		if serr := p.Signal(sig); serr != nil && !errors.Is(serr, os.ErrProcessDone) {
			return serr
		}
		return nil
	}
	if err := syscall.Kill(-pgid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}
