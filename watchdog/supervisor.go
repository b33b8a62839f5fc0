package watchdog

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/judgenot0/watchdog/structs"
)

// DefaultMemoryUsageFile is the cgroup-v2 usage counter the monitor reads
// when nothing overrides it. Whether it covers only the target is a
// deployment concern: the watchdog is expected to run inside its own
// control group.
const DefaultMemoryUsageFile = "/sys/fs/cgroup/memory.current"

// Options tunes a run. The zero value is production behavior.
type Options struct {
	// MemoryUsageFile overrides the memory counter path. Empty falls back
	// to the MEMORY_USAGE_FILE environment variable, then the default.
	MemoryUsageFile string
}

func (o Options) memoryUsageFile() string {
	if o.MemoryUsageFile != "" {
		return o.MemoryUsageFile
	}
	if env := os.Getenv("MEMORY_USAGE_FILE"); env != "" {
		return env
	}
	return DefaultMemoryUsageFile
}

// supervision is the shared state of one run. finished is the single
// run-is-over latch: whoever flips it first wins, everyone else drains out.
type supervision struct {
	start      time.Time
	finished   atomic.Bool
	peakMemory atomic.Int64
	pid        int

	stdoutPipe *os.File
	stderrPipe *os.File
	stdout     *CappedBuffer
	stderr     *CappedBuffer
	scratch    []byte
}

// Run executes one job under full supervision and composes its verdict.
// An error return means the target never started (pipe or fork failure);
// once the target is running a verdict is always produced, whatever the
// target does.
func Run(job *structs.Job, opts Options) (*structs.Verdict, error) {
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("pipe failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("pipe failed: %v", err)
	}

	exe, err := os.Executable()
	if err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return nil, fmt.Errorf("locate watchdog binary: %v", err)
	}

	// The target is this binary re-exec'd in child mode; it drops
	// privileges and execs the shell itself. A bad uid/gid is therefore a
	// child failure reported through the verdict, not a start failure.
	cmd := exec.Command(exe, ChildMode, strconv.Itoa(job.UID), strconv.Itoa(job.GID), job.Command)
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	stdinW, err := cmd.StdinPipe()
	if err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return nil, fmt.Errorf("stdin pipe failed: %v", err)
	}

	s := &supervision{
		start:      time.Now(),
		stdoutPipe: stdoutR,
		stderrPipe: stderrR,
		stdout:     NewCappedBuffer("stdout"),
		stderr:     NewCappedBuffer("stderr"),
		scratch:    make([]byte, readChunkSize),
	}

	if err := cmd.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return nil, fmt.Errorf("fork failed: %v", err)
	}
	s.pid = cmd.Process.Pid

	// The child owns the write ends now; holding our copies open would
	// keep the drain phase from ever seeing EOF.
	stdoutW.Close()
	stderrW.Close()

	go feedStdin(stdinW, job.Stdin)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.monitor(opts.memoryUsageFile(), job.MemoryLimitMB*1024*1024)
	}()
	go func() {
		defer wg.Done()
		s.deadline(job.TimeoutMS)
	}()

	_ = cmd.Wait()
	s.finished.Store(true)
	wg.Wait()

	timeMS := time.Since(s.start).Milliseconds()

	// Drain whatever sat in the kernel between the last pump sample and
	// the target's death. EOF is guaranteed: the target has been reaped and
	// the rest of its process group has been killed by now.
	drain(stdoutR, s.stdout)
	drain(stderrR, s.stderr)
	stdoutR.Close()
	stderrR.Close()

	s.stdout.Finalize()
	s.stderr.Finalize()

	peak := s.peakMemory.Load()
	verdict := &structs.Verdict{
		ExitCode: exitCode(cmd.ProcessState),
		Stdout:   s.stdout.String(),
		Stderr:   s.stderr.String(),
		TimeMS:   timeMS,
		MemoryKB: peak / 1024,
		TLE:      job.TimeoutMS > 0 && timeMS >= job.TimeoutMS,
		MLE:      job.MemoryLimitMB > 0 && peak >= job.MemoryLimitMB*1024*1024,
	}
	return verdict, nil
}

// feedStdin delivers the payload and closes the pipe so the target sees
// EOF. A target that exits without reading turns the write into EPIPE,
// which is not our problem.
func feedStdin(w io.WriteCloser, data string) {
	defer w.Close()
	_, _ = io.WriteString(w, data)
}

// drain performs the blocking post-reap reads until EOF. Overflow here is
// handled the same as during streaming: truncate and stop reading.
func drain(pipe *os.File, buf *CappedBuffer) {
	chunk := make([]byte, readChunkSize)
	for {
		n, err := pipe.Read(chunk)
		if n > 0 {
			if appendErr := buf.Append(chunk[:n]); appendErr != nil {
				buf.Truncate()
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// exitCode maps the wait status onto the verdict convention: the plain
// status for a normal exit, 128+signal for a signal death, -1 otherwise.
func exitCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return -1
	}
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	}
	return -1
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
