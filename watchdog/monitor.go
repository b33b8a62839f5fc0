package watchdog

import (
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const (
	monitorInterval  = 10 * time.Millisecond
	deadlineInterval = 50 * time.Millisecond
	readChunkSize    = 4096
)

// memorySampler reads the host-provided memory usage counter, a single
// integer in bytes. A sampler opened against a missing file is valid and
// never yields a sample, which degrades the run to memoryKB=0, MLE=false.
type memorySampler struct {
	file *os.File
	buf  [64]byte
}

func openMemorySampler(path string) *memorySampler {
	file, err := os.Open(path)
	if err != nil {
		return &memorySampler{}
	}
	return &memorySampler{file: file}
}

func (m *memorySampler) sample() (int64, bool) {
	if m.file == nil {
		return 0, false
	}
	n, _ := m.file.ReadAt(m.buf[:], 0)
	if n <= 0 {
		return 0, false
	}
	value, err := strconv.ParseInt(strings.TrimSpace(string(m.buf[:n])), 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func (m *memorySampler) close() {
	if m.file != nil {
		_ = m.file.Close()
	}
}

// monitor is the folded resource monitor and output pump: every tick it
// samples memory usage, tracks the peak, trips the memory cap, and drains
// whatever the capture pipes have ready. It exits as soon as the latch is
// set by anyone.
func (s *supervision) monitor(memPath string, limitBytes int64) {
	sampler := openMemorySampler(memPath)
	defer sampler.close()

	for !s.finished.Load() {
		if current, ok := sampler.sample(); ok {
			if current > s.peakMemory.Load() {
				s.peakMemory.Store(current)
			}
			if limitBytes > 0 && current > limitBytes {
				s.finished.Store(true)
				KillTree(s.pid)
				return
			}
		}

		if !s.pump(s.stdoutPipe, s.stdout) {
			return
		}
		if !s.pump(s.stderrPipe, s.stderr) {
			return
		}

		time.Sleep(monitorInterval)
	}
}

// pump performs one zero-timeout poll and at most one read on the pipe.
// It returns false when the buffer overflowed, after truncating it and
// setting the latch; the deadline goroutine's final alive probe then
// reaps the target.
func (s *supervision) pump(pipe *os.File, buf *CappedBuffer) bool {
	fds := []unix.PollFd{{Fd: int32(pipe.Fd()), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	if err != nil || n == 0 || fds[0].Revents&unix.POLLIN == 0 {
		return true
	}
	count, err := unix.Read(int(pipe.Fd()), s.scratch)
	if err != nil || count <= 0 {
		return true
	}
	if err := buf.Append(s.scratch[:count]); err != nil {
		buf.Truncate()
		s.finished.Store(true)
		return false
	}
	return true
}

// deadline enforces the wall-clock limit. After the loop it probes the
// target once more and kills the tree if it survived, which also covers
// trips raised by the monitor, and then sweeps the target's process group
// so descendants of a target that already exited do not outlive the run.
func (s *supervision) deadline(timeoutMS int64) {
	for !s.finished.Load() {
		if timeoutMS > 0 && time.Since(s.start).Milliseconds() >= timeoutMS {
			s.finished.Store(true)
			KillTree(s.pid)
			break
		}
		time.Sleep(deadlineInterval)
	}
	if Alive(s.pid) {
		KillTree(s.pid)
	}
	_ = unix.Kill(-s.pid, unix.SIGKILL)
}
