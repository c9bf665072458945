package display

import "testing"

func TestCloseRestoresSavedCrtcBitForBit(t *testing.T) {
	b, cfg := singleConnectorFixture()
	b.crtc = CrtcState{CrtcID: 9, FbID: 42, X: 1, Y: 2, ModeValid: true, Mode: "native-timing"}
	d := newTestDisplay(b)

	if err := d.Open(cfg); err != nil {
		t.Fatalf("Open: %v", err)
	}
	saved := d.savedCrtc

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if d.State() != Idle {
		t.Fatalf("State: got %v want Idle", d.State())
	}
	if b.restoreCrtcCalled != saved {
		t.Fatalf("RestoreCrtc: got %+v want %+v", b.restoreCrtcCalled, saved)
	}
	if !b.closed {
		t.Fatalf("expected backend.Close to be called")
	}
}

func TestCloseReleasesAllFramebuffers(t *testing.T) {
	b, cfg := singleConnectorFixture()
	d := newTestDisplay(b)
	if err := d.Open(cfg); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(b.dumb) != 0 {
		t.Fatalf("expected every dumb buffer destroyed, got %d remaining", len(b.dumb))
	}
	if len(d.stubFBs) != 0 {
		t.Fatalf("expected stubFBs cleared after close")
	}
}

func TestCloseRejectsWhenNotOpen(t *testing.T) {
	d := New()
	if err := d.Close(); err == nil {
		t.Fatalf("Close on an unopened display: expected error")
	}
}

func TestCloseWaitsOutPendingDMAFlipBeforeRestoring(t *testing.T) {
	d, b := openedDmaDisplay(t)
	buf := rgbCaptureBuffer(1280, 720, 7)
	b.waitEventSeq = []bool{false} // flip doesn't settle until Close's drain

	released := false
	if err := d.Present(buf, func() { released = true }); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if released {
		t.Fatalf("release should not have run yet: vsync event hasn't landed")
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !released {
		t.Fatalf("expected Close to drain the pending flip and release its buffer")
	}
}
