//go:build windows

package generator

import "os/exec"

// setProcessGroup keeps the exec.CommandContext default of killing the direct child.
func setProcessGroup(*exec.Cmd) {}
