//go:build unix && !linux

package managedprocess

import "syscall"

// Pdeathsig is Linux-only.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}
