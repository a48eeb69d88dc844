//go:build !windows

package gate

import (
	"os/exec"
	"syscall"
)

// killLingering sends SIGKILL to a compiler subprocess whose context
// deadline has already fired. Only that process is signalled; children the
// elm binary may have spawned are not.
func killLingering(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.Signal(0)) // probe liveness, ignore result
	_ = cmd.Process.Kill()
}
