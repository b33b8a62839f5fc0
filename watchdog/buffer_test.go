package watchdog

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestCappedBufferAppendWithinCap(t *testing.T) {
	buf := NewCappedBuffer("stdout")
	payload := bytes.Repeat([]byte("a"), MaxCaptureBytes)
	if err := buf.Append(payload); err != nil {
		t.Fatalf("append within cap failed: %v", err)
	}
	if buf.Len() != MaxCaptureBytes {
		t.Fatalf("expected %d bytes, got %d", MaxCaptureBytes, buf.Len())
	}
	if buf.Truncated() {
		t.Fatal("buffer should not be truncated")
	}
}

func TestCappedBufferOverflow(t *testing.T) {
	buf := NewCappedBuffer("stdout")
	if err := buf.Append(bytes.Repeat([]byte("x"), MaxCaptureBytes+captureSlack)); err != nil {
		t.Fatalf("append within slack failed: %v", err)
	}
	err := buf.Append([]byte("y"))
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
}

func TestCappedBufferTruncation(t *testing.T) {
	buf := NewCappedBuffer("stdout")
	head := strings.Repeat("h", 200)
	if err := buf.Append([]byte(head)); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	buf.Truncate()

	content := buf.String()
	if !strings.HasPrefix(content, strings.Repeat("h", 100)) {
		t.Fatalf("truncated buffer lost its head: %q", content)
	}
	if !strings.HasSuffix(content, buf.Marker()) {
		t.Fatalf("truncated buffer does not end with marker: %q", content)
	}
	if want := strings.Repeat("h", 100) + buf.Marker(); content != want {
		t.Fatalf("unexpected truncated content:\nwant %q\ngot  %q", want, content)
	}
}

func TestCappedBufferTruncationIdempotent(t *testing.T) {
	buf := NewCappedBuffer("stderr")
	_ = buf.Append([]byte("some output"))
	buf.Truncate()
	first := buf.String()

	buf.Truncate()
	if buf.String() != first {
		t.Fatal("second truncation changed contents")
	}

	if err := buf.Append([]byte("late data")); err != nil {
		t.Fatalf("append after truncation should be a dropped no-op, got %v", err)
	}
	if buf.String() != first {
		t.Fatal("append after truncation changed contents")
	}
}

func TestCappedBufferFinalizeClampsSlack(t *testing.T) {
	buf := NewCappedBuffer("stdout")
	if err := buf.Append(bytes.Repeat([]byte("z"), MaxCaptureBytes+10)); err != nil {
		t.Fatalf("append within slack failed: %v", err)
	}
	buf.Finalize()
	if !buf.Truncated() {
		t.Fatal("finalize should truncate contents past the cap")
	}
	if !strings.HasSuffix(buf.String(), buf.Marker()) {
		t.Fatal("finalized buffer does not end with marker")
	}
}

func TestCappedBufferFinalizeKeepsSmallOutput(t *testing.T) {
	buf := NewCappedBuffer("stdout")
	_ = buf.Append([]byte("hello\n"))
	buf.Finalize()
	if buf.Truncated() || buf.String() != "hello\n" {
		t.Fatalf("finalize mangled small output: %q", buf.String())
	}
}

func TestCappedBufferMarkerWording(t *testing.T) {
	out := NewCappedBuffer("stdout")
	if out.Marker() != "...\nstdout is too long. capacity(4096bytes) exceeded\n" {
		t.Fatalf("stdout marker drifted: %q", out.Marker())
	}
	errBuf := NewCappedBuffer("stderr")
	if errBuf.Marker() != "...\nstderr is too long. capacity(4096bytes) exceeded\n" {
		t.Fatalf("stderr marker drifted: %q", errBuf.Marker())
	}
}
