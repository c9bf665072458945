package codec

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
	"github.com/lanternops/streamnode/internal/logging"
)

// Encoder drives one NV12 -> H.264 hardware context through its lifecycle
// (§4.D encoder specifics).
type Encoder struct {
	mu      sync.Mutex
	id      uuid.UUID
	state   State
	backend codecBackend
	stats   Stats

	width, height int
	rc            RateControl
	h264          H264Params
}

// NewEncoder runs the common setup contract and the encoder-specific prep
// (hor_stride/ver_stride alignment, NV12 input format, full range) and
// returns a context in the Configured state.
func NewEncoder(backend codecBackend, width, height int, rc RateControl, h264 H264Params) (*Encoder, error) {
	if backend == nil || width <= 0 || height <= 0 {
		return nil, errs.New(errs.InvalidParam, "codec.NewEncoder", nil)
	}
	if err := backend.InitEncoder(width, height, rc, h264); err != nil {
		return nil, errs.New(errs.Init, "codec.NewEncoder", err)
	}
	return &Encoder{
		id: uuid.New(), state: Configured, backend: backend,
		width: width, height: height, rc: rc, h264: h264,
	}, nil
}

func (e *Encoder) ID() uuid.UUID { return e.id }

func (e *Encoder) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Encoder) Stats() Snapshot { return e.stats.Snapshot() }

// SetProfile re-applies the H.264 parameter block with a new profile,
// valid before and after initialization (§4.D config mutators).
func (e *Encoder) SetProfile(profile int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	h264 := e.h264
	h264.Profile = profile
	if err := e.backend.SetH264Params(h264); err != nil {
		return errs.New(errs.InvalidParam, "codec.Encoder.SetProfile", err)
	}
	e.h264 = h264
	return nil
}

// SetRCMode re-applies the rate-control block with a new mode.
func (e *Encoder) SetRCMode(mode RCMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rc := e.rc
	rc.Mode = mode
	if err := e.backend.SetRateControl(rc); err != nil {
		return errs.New(errs.InvalidParam, "codec.Encoder.SetRCMode", err)
	}
	e.rc = rc
	return nil
}

// SetQPRange re-applies the H.264 parameter block with a new QP range.
// Requires qp_min <= qp_max <= 51.
func (e *Encoder) SetQPRange(min, max int) error {
	if min > max || max > 51 || min < 0 {
		return errs.New(errs.InvalidParam, "codec.Encoder.SetQPRange", nil)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	h264 := e.h264
	h264.QPMin, h264.QPMax = min, max
	if err := e.backend.SetH264Params(h264); err != nil {
		return errs.New(errs.InvalidParam, "codec.Encoder.SetQPRange", err)
	}
	e.h264 = h264
	return nil
}

// Encode submits one NV12 input frame and returns the resulting H.264
// access unit. forceKeyframe requests an IDR via the OUTPUT_INTRA meta key.
func (e *Encoder) Encode(dst *frame.Frame, nv12 []byte, forceKeyframe bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Destroyed {
		return errs.New(errs.NotInitialized, "codec.Encoder.Encode", nil)
	}

	start := time.Now()
	if err := e.backend.EncodePutFrame(nv12, forceKeyframe); err != nil {
		e.stats.recordEncode(false, time.Since(start).Nanoseconds(), 0, false)
		return errs.New(errs.Encode, "codec.Encoder.Encode", err)
	}

	outcome, err := e.backend.EncodeGetPacket()
	elapsed := time.Since(start).Nanoseconds()
	if err != nil {
		e.stats.recordEncode(false, elapsed, 0, false)
		return errs.New(errs.Timeout, "codec.Encoder.Encode", err)
	}
	if outcome.Timeout {
		// First-iteration timeout means "frame accepted, no bitstream yet";
		// the caller moves on to the next input frame. It does not count
		// as a failure, nor does it produce output.
		e.stats.recordEncode(true, elapsed, 0, false)
		dst.Used = 0
		return nil
	}

	e.state = Running
	size := len(outcome.Payload)
	if err := dst.EnsureCapacity(size); err != nil {
		e.stats.recordEncode(false, elapsed, 0, false)
		return errs.New(errs.OutOfMemory, "codec.Encoder.Encode", err)
	}
	copy(dst.Data, outcome.Payload)
	dst.Format = frame.H264
	dst.Stride = 0
	dst.Used = size
	e.stats.recordEncode(true, elapsed, size, outcome.Keyframe)

	logging.L("codec").Debug("encoded frame", logging.KeyContextID, e.id, "bytes", size, "keyframe", outcome.Keyframe)
	return nil
}

// Close releases the backend context. Idempotent.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Destroyed {
		return nil
	}
	err := e.backend.Close()
	e.state = Destroyed
	return err
}
