package codec

import (
	"errors"
	"testing"

	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
)

func newTestEncoder(t *testing.T, backend *fakeBackend) *Encoder {
	t.Helper()
	e, err := NewEncoder(backend, 640, 480, RateControl{Mode: RCModeVBR, BitrateBps: 2_000_000, FPSNum: 30, FPSDen: 1, GOPSize: 60}, DefaultH264Params())
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	return e
}

func TestNewEncoderRejectsBadGeometry(t *testing.T) {
	if _, err := NewEncoder(&fakeBackend{}, 0, 480, RateControl{}, H264Params{}); err == nil {
		t.Fatalf("expected error for zero width")
	}
}

func TestEncoderFirstTimeoutIsNotAFailure(t *testing.T) {
	backend := &fakeBackend{encodeOutcomes: []EncodeOutcome{{Timeout: true}}}
	e := newTestEncoder(t, backend)
	var dst frame.Frame
	if err := e.Encode(&dst, make([]byte, 100), false); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if dst.Used != 0 {
		t.Fatalf("used = %d, want 0 on first-iteration timeout", dst.Used)
	}
	if snap := e.Stats(); snap.ErrorOut != 0 || snap.SuccessOut != 1 {
		t.Fatalf("stats = %+v, want one success, no error", snap)
	}
}

func TestEncoderExhaustedTimeoutIsTerminal(t *testing.T) {
	backend := &fakeBackend{encodeErrs: []error{errs.New(errs.Timeout, "fake", nil)}}
	e := newTestEncoder(t, backend)
	var dst frame.Frame
	err := e.Encode(&dst, make([]byte, 100), false)
	kind, ok := errs.KindOf(err)
	if !ok || kind != errs.Timeout {
		t.Fatalf("kind = %v (ok=%v), want Timeout", kind, ok)
	}
}

func TestEncoderProducesKeyframeAndBytes(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	backend := &fakeBackend{encodeOutcomes: []EncodeOutcome{{Payload: payload, Keyframe: true}}}
	e := newTestEncoder(t, backend)
	var dst frame.Frame
	if err := e.Encode(&dst, make([]byte, 100), true); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if dst.Format != frame.H264 || dst.Stride != 0 || dst.Used != len(payload) {
		t.Fatalf("dst = %+v, want H264/stride0/used%d", dst, len(payload))
	}
	if e.State() != Running {
		t.Fatalf("state = %v, want Running", e.State())
	}
	if snap := e.Stats(); snap.Keyframes != 1 || snap.BytesOut != uint64(len(payload)) {
		t.Fatalf("stats = %+v, want 1 keyframe and %d bytes out", snap, len(payload))
	}
}

func TestEncoderPutFrameFailureRecordsError(t *testing.T) {
	backend := &fakeBackend{putFrameErr: errors.New("encode fault")}
	e := newTestEncoder(t, backend)
	var dst frame.Frame
	if err := e.Encode(&dst, make([]byte, 100), false); err == nil {
		t.Fatalf("expected error")
	}
	if snap := e.Stats(); snap.ErrorOut != 1 {
		t.Fatalf("error out = %d, want 1", snap.ErrorOut)
	}
}

func TestSetQPRangeValidation(t *testing.T) {
	e := newTestEncoder(t, &fakeBackend{})
	if err := e.SetQPRange(20, 10); err == nil {
		t.Fatalf("expected error for qp_min > qp_max")
	}
	if err := e.SetQPRange(10, 52); err == nil {
		t.Fatalf("expected error for qp_max > 51")
	}
	if err := e.SetQPRange(16, 40); err != nil {
		t.Fatalf("SetQPRange: %v", err)
	}
}

func TestSetProfileAndRCModeReapplyAtomically(t *testing.T) {
	backend := &fakeBackend{}
	e := newTestEncoder(t, backend)
	if err := e.SetProfile(66); err != nil {
		t.Fatalf("SetProfile: %v", err)
	}
	if backend.h264.Profile != 66 {
		t.Fatalf("backend profile = %d, want 66", backend.h264.Profile)
	}
	if err := e.SetRCMode(RCModeCBR); err != nil {
		t.Fatalf("SetRCMode: %v", err)
	}
	if backend.rc.Mode != RCModeCBR {
		t.Fatalf("backend rc mode = %v, want CBR", backend.rc.Mode)
	}
}

func TestEncoderCloseIsIdempotent(t *testing.T) {
	backend := &fakeBackend{}
	e := newTestEncoder(t, backend)
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	var dst frame.Frame
	if err := e.Encode(&dst, make([]byte, 10), false); err == nil {
		t.Fatalf("expected error encoding on destroyed context")
	}
}

func TestRateControlBpsBounds(t *testing.T) {
	rc := RateControl{BitrateBps: 1_000_000}
	if rc.bpsMax() != 1_200_000 {
		t.Fatalf("bpsMax = %d, want 1200000", rc.bpsMax())
	}
	if rc.bpsMin() != 800_000 {
		t.Fatalf("bpsMin = %d, want 800000", rc.bpsMin())
	}
}
