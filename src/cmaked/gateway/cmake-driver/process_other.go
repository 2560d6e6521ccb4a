//go:build !unix

package cmakedriver

import "os/exec"

// killProcessGroup keeps the default cancellation, which kills only the process itself.
func killProcessGroup(cmd *exec.Cmd) {}
