package watchdog

import (
	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"
)

// KillTree delivers SIGKILL to every descendant of pid, leaves first, then
// to pid itself. The target runs under /bin/sh, so pipelines and subshells
// leave grandchildren behind; killing only the shell would leave them
// holding the capture pipes open and the drain phase would never see EOF.
// Signal failures are swallowed: a pid that is already gone is exactly what
// the caller wants.
func KillTree(pid int) {
	killRecursive(int32(pid))
	// The target leads its own process group; sweep the group as well in
	// case a descendant slipped between enumeration and delivery.
	_ = unix.Kill(-pid, unix.SIGKILL)
}

func killRecursive(pid int32) {
	if proc, err := process.NewProcess(pid); err == nil {
		if children, err := proc.Children(); err == nil {
			for _, child := range children {
				killRecursive(child.Pid)
			}
		}
	}
	_ = unix.Kill(int(pid), unix.SIGKILL)
}

// Alive probes pid with the null signal. EPERM still means the process
// exists.
func Alive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err != unix.ESRCH
}
