//go:build !unix

package transcoder

import "os/exec"

func detachProcessGroup(_ *exec.Cmd) {}
