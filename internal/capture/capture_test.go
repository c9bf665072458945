package capture

import (
	"testing"

	"github.com/lanternops/streamnode/internal/frame"
)

func TestOpenNegotiatesGeometryFormatAndBufferCount(t *testing.T) {
	dev := newFakeDevice()
	c := newTestCapture(dev)

	state, err := c.Open(Config{DevicePath: "/dev/video0"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if state.Width != 1280 || state.Height != 720 {
		t.Fatalf("geometry = %dx%d, want 1280x720", state.Width, state.Height)
	}
	if state.Format != frame.YUYV {
		t.Fatalf("format = %v, want YUYV", state.Format)
	}
	if state.NBufs != 4 || len(state.Buffers) != 4 {
		t.Fatalf("NBufs/Buffers = %d/%d, want 4/4", state.NBufs, len(state.Buffers))
	}
	if len(dev.queuedIdx) != 4 {
		t.Fatalf("expected every buffer queued at open, got %v", dev.queuedIdx)
	}
	for i, b := range state.Buffers {
		if b.Index != i {
			t.Fatalf("Buffers[%d].Index = %d", i, b.Index)
		}
		if b.DMAFd != -1 {
			t.Fatalf("Buffers[%d].DMAFd = %d, want -1 (export unsupported by default fake)", i, b.DMAFd)
		}
	}
}

func TestOpenRejectsWhenAlreadyOpen(t *testing.T) {
	dev := newFakeDevice()
	c := newTestCapture(dev)
	if _, err := c.Open(Config{}); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := c.Open(Config{}); err == nil {
		t.Fatalf("expected second Open to fail")
	}
}

func TestOpenExportsDMAFdWhenSupported(t *testing.T) {
	dev := newFakeDevice()
	dev.dmaFd = 42
	c := newTestCapture(dev)

	state, err := c.Open(Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, b := range state.Buffers {
		if b.DMAFd != 42 {
			t.Fatalf("DMAFd = %d, want 42", b.DMAFd)
		}
		if !b.HasDMA() {
			t.Fatalf("expected HasDMA() true when DMAFd >= 0")
		}
	}
}

func TestPollReturnsPopulatedBuffer(t *testing.T) {
	dev := newFakeDevice()
	dev.readableSeq = []bool{true}
	dev.dequeueSeq = []dequeueResult{{index: 2, bytesUsed: 12345}}
	c := newTestCapture(dev)
	if _, err := c.Open(Config{}); err != nil {
		t.Fatalf("Open: %v", err)
	}

	buf, err := c.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if buf == nil {
		t.Fatalf("expected a buffer, got nil")
	}
	if buf.Index != 2 {
		t.Fatalf("Index = %d, want 2", buf.Index)
	}
	if buf.Raw.Used != 12345 {
		t.Fatalf("Used = %d, want 12345", buf.Raw.Used)
	}
	if buf.Raw.GrabTS.IsZero() {
		t.Fatalf("expected GrabTS to be stamped")
	}
	if buf.HasDMA() {
		t.Fatalf("expected HasDMA() false, export unsupported by default fake")
	}
}

func TestPollReturnsNilWhenNotReady(t *testing.T) {
	dev := newFakeDevice()
	dev.readableSeq = []bool{false}
	c := newTestCapture(dev)
	if _, err := c.Open(Config{}); err != nil {
		t.Fatalf("Open: %v", err)
	}

	buf, err := c.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if buf != nil {
		t.Fatalf("expected nil buffer when device not readable")
	}
}

func TestPollBeforeOpenFails(t *testing.T) {
	c := newTestCapture(newFakeDevice())
	if _, err := c.Poll(); err == nil {
		t.Fatalf("expected error polling an unopened Capture")
	}
}

func TestReleaseRequeuesBuffer(t *testing.T) {
	dev := newFakeDevice()
	dev.readableSeq = []bool{true}
	dev.dequeueSeq = []dequeueResult{{index: 1, bytesUsed: 10}}
	c := newTestCapture(dev)
	if _, err := c.Open(Config{}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := c.Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	dev.queuedIdx = nil
	if err := c.Release(1); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if len(dev.queuedIdx) != 1 || dev.queuedIdx[0] != 1 {
		t.Fatalf("expected buffer 1 requeued, got %v", dev.queuedIdx)
	}
}

func TestReleaseRejectsAlreadyQueuedIndex(t *testing.T) {
	dev := newFakeDevice()
	c := newTestCapture(dev)
	if _, err := c.Open(Config{}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	// every index is queued at Open; releasing one that was never polled
	// is a caller bug.
	if err := c.Release(0); err == nil {
		t.Fatalf("expected error releasing an already-queued index")
	}
}

func TestReleaseRejectsOutOfRangeIndex(t *testing.T) {
	dev := newFakeDevice()
	c := newTestCapture(dev)
	if _, err := c.Open(Config{}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Release(99); err == nil {
		t.Fatalf("expected error for out-of-range index")
	}
}

func TestCloseTearsDownCleanly(t *testing.T) {
	dev := newFakeDevice()
	c := newTestCapture(dev)
	if _, err := c.Open(Config{}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !dev.closed {
		t.Fatalf("expected device Close to be called")
	}
	if err := c.Close(); err == nil {
		t.Fatalf("expected error closing an already-closed Capture")
	}
}

func TestOpenFailsWhenFormatNegotiationFails(t *testing.T) {
	dev := newFakeDevice()
	dev.setFormatErr = &formatErr{}
	c := newTestCapture(dev)
	if _, err := c.Open(Config{}); err == nil {
		t.Fatalf("expected Open to fail when SetFormat fails")
	}
}

type formatErr struct{}

func (*formatErr) Error() string { return "negotiation failed" }
