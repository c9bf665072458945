package display

import (
	"testing"
	"time"

	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
)

func openedDmaDisplay(t *testing.T) (*Display, *fakeBackend) {
	t.Helper()
	b, cfg := singleConnectorFixture()
	cfg.CaptureConfigured = true
	cfg.BlankAfter = 20 * time.Millisecond
	cfg.VsyncTimeout = time.Millisecond
	d := newTestDisplay(b)
	if err := d.Open(cfg); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return d, b
}

func rgbCaptureBuffer(w, h int, dmaFd int) *frame.CaptureBuffer {
	raw := &frame.Frame{
		Width:  w,
		Height: h,
		Stride: w * 4,
		Format: frame.XRGB8888,
		Used:   w * h * 4,
		Data:   make([]byte, w*h*4),
	}
	return &frame.CaptureBuffer{Index: 0, Raw: raw, DMAFd: dmaFd}
}

func TestPresentNilBufferEntersNoSignalThenBlanks(t *testing.T) {
	d, b := openedDmaDisplay(t)

	if err := d.Present(nil, nil); err != nil {
		t.Fatalf("Present(nil): %v", err)
	}
	if d.LiveState() != NoSignal {
		t.Fatalf("LiveState: got %v want NoSignal", d.LiveState())
	}

	time.Sleep(25 * time.Millisecond)
	if err := d.Present(nil, nil); err != nil {
		t.Fatalf("Present(nil) after deadline: %v", err)
	}
	if d.LiveState() != Blanked {
		t.Fatalf("LiveState: got %v want Blanked", d.LiveState())
	}
	if len(b.dpmsCalls) == 0 || b.dpmsCalls[len(b.dpmsCalls)-1] != false {
		t.Fatalf("expected a DPMS off call, got %v", b.dpmsCalls)
	}
}

func TestPresentLiveFrameViaDMAImport(t *testing.T) {
	d, b := openedDmaDisplay(t)
	buf := rgbCaptureBuffer(1280, 720, 7)
	released := false

	if err := d.Present(buf, func() { released = true }); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if d.LiveState() != Live {
		t.Fatalf("LiveState: got %v want Live", d.LiveState())
	}
	if b.pageFlipCalls == 0 {
		t.Fatalf("expected a page flip for DMA-imported live frame")
	}
	if !released {
		t.Fatalf("expected release to run once the flip's vsync event lands")
	}
}

func TestPresentLiveFrameCPUFallbackWithoutDMA(t *testing.T) {
	d, b := openedDmaDisplay(t)
	buf := rgbCaptureBuffer(1280, 720, -1)
	released := false

	if err := d.Present(buf, func() { released = true }); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if !released {
		t.Fatalf("expected release to run after CPU conversion consumed the source")
	}
	if d.cpuLiveSlot == nil {
		t.Fatalf("expected a CPU live slot to be allocated")
	}
	_ = b
}

func TestPresentOversizeResolutionShowsStub(t *testing.T) {
	d, _ := openedDmaDisplay(t)
	buf := rgbCaptureBuffer(4000, 3000, -1)
	released := false

	if err := d.Present(buf, func() { released = true }); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if !released {
		t.Fatalf("expected immediate release for rejected oversize frame")
	}
	if d.LiveState() == Live {
		t.Fatalf("LiveState should not become Live for a rejected frame")
	}
}

func TestPresentUnsupportedFormatShowsStub(t *testing.T) {
	d, _ := openedDmaDisplay(t)
	buf := rgbCaptureBuffer(1280, 720, -1)
	buf.Raw.Format = frame.MJPEG
	released := false

	if err := d.Present(buf, func() { released = true }); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if !released {
		t.Fatalf("expected immediate release for unsupported-format frame")
	}
}

func TestPresentAmlogicAlwaysUsesCPUPathAndSelfAssertsVsync(t *testing.T) {
	b, cfg := singleConnectorFixture()
	b.driverName = "meson"
	cfg.CaptureConfigured = true
	d := newTestDisplay(b)
	if err := d.Open(cfg); err != nil {
		t.Fatalf("Open: %v", err)
	}

	buf := rgbCaptureBuffer(1280, 720, 7) // has DMA, but amlogic never imports it
	if err := d.Present(buf, nil); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if !d.hasVsync {
		t.Fatalf("amlogic path should self-assert hasVsync")
	}
	if len(d.dmaFBs) != 0 {
		t.Fatalf("amlogic path must never import DMA fds: got %d imports", len(d.dmaFBs))
	}
}

func TestPresentDeviceDisconnectWaitsForReplugWithoutPageFlip(t *testing.T) {
	d, b := openedDmaDisplay(t)
	b.importErr = errs.New(errs.NoDevice, "backend.ImportPrimeFD", nil)
	buf := rgbCaptureBuffer(1280, 720, 7)
	released := false

	if err := d.Present(buf, func() { released = true }); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if d.LiveState() != Disconnected {
		t.Fatalf("LiveState: got %v want Disconnected", d.LiveState())
	}
	if !released {
		t.Fatalf("expected the buffer to be released even though nothing was scanned out")
	}
	if b.pageFlipCalls != 0 {
		t.Fatalf("disconnect must never fall back to a page flip, got %d calls", b.pageFlipCalls)
	}

	// No frame arriving while disconnected must not error or flip either.
	if err := d.Present(nil, nil); err != nil {
		t.Fatalf("Present(nil) while disconnected: %v", err)
	}
	if d.LiveState() != Disconnected {
		t.Fatalf("LiveState after nil present: got %v want Disconnected", d.LiveState())
	}
	if b.pageFlipCalls != 0 {
		t.Fatalf("no-signal handling while disconnected must never flip, got %d calls", b.pageFlipCalls)
	}

	// Replug: the next import succeeds, so live scan-out resumes normally.
	b.importErr = nil
	buf2 := rgbCaptureBuffer(1280, 720, 7)
	released2 := false
	if err := d.Present(buf2, func() { released2 = true }); err != nil {
		t.Fatalf("Present after replug: %v", err)
	}
	if d.LiveState() != Live {
		t.Fatalf("LiveState after replug: got %v want Live", d.LiveState())
	}
	if !released2 {
		t.Fatalf("expected release once the flip's vsync event lands after replug")
	}
	if b.pageFlipCalls == 0 {
		t.Fatalf("expected a page flip once the sink replugs")
	}
}

func TestPresentStubModeIgnoresSuppliedBuffer(t *testing.T) {
	b, cfg := singleConnectorFixture()
	d := newTestDisplay(b)
	if err := d.Open(cfg); err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := rgbCaptureBuffer(1280, 720, -1)
	released := false
	if err := d.Present(buf, func() { released = true }); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if !released {
		t.Fatalf("stub mode must release any supplied buffer immediately")
	}
}
