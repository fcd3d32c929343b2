//go:build windows

package vcs

import (
	"os/exec"
	"strconv"
)

// setProcessGroup makes cancellation kill the child and its descendants.
// git on windows frequently spawns helper processes that outlive a plain Kill.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		kill := exec.Command("taskkill", "/PID", strconv.Itoa(cmd.Process.Pid), "/T", "/F")
		if err := kill.Run(); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}
