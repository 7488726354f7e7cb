//go:build unix

package transcoder

import (
	"os/exec"
	"syscall"
)

// detachProcessGroup puts the encoder in its own process group so a terminal
// interrupt aimed at the relay does not also reach the encoder.
func detachProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
