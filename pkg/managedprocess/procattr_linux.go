package managedprocess

import "syscall"

// sysProcAttr asks the kernel to send SIGTERM to the child once the thread
// that forked it exits. The Go runtime only retires threads at process exit,
// except for goroutines that die while locked to their thread; spawns never
// lock, so in practice the signal arrives when the engine exits.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGTERM,
	}
}
