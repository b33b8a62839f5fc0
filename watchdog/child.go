package watchdog

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// ChildMode is the hidden argv marker for the re-exec'd setup child. The
// supervisor forks the watchdog binary itself in this mode, so starting the
// target cannot fail on a bad uid/gid: the credential drop happens inside
// the already-forked child, and a failure there is a non-zero child exit
// observed on the normal wait path like any other target failure.
const ChildMode = "__watchdog-child"

// ChildMain is the child arm: set the group id, then the user id, then exec
// the shell. It never returns. Both credential calls are hard errors; the
// diagnostics go to stderr, which is already redirected into the capture
// pipe, so they end up in the verdict.
func ChildMain(args []string) {
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "child setup: bad argument vector")
		os.Exit(1)
	}
	uid, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "child setup: bad uid %q\n", args[0])
		os.Exit(1)
	}
	gid, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "child setup: bad gid %q\n", args[1])
		os.Exit(1)
	}

	if err := unix.Setgid(gid); err != nil {
		fmt.Fprintf(os.Stderr, "setgid failed: %v\n", err)
		os.Exit(1)
	}
	if err := unix.Setuid(uid); err != nil {
		fmt.Fprintf(os.Stderr, "setuid failed: %v\n", err)
		os.Exit(1)
	}

	if err := unix.Exec("/bin/sh", []string{"sh", "-c", args[2]}, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "exec failed: %v\n", err)
	}
	os.Exit(1)
}
