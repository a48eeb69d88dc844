//go:build windows

package gate

import "os/exec"

// killLingering terminates a compiler subprocess whose context deadline has
// already fired.
func killLingering(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
