//go:build !unix && !windows

package vcs

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}
