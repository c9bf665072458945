package codec

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
	"github.com/lanternops/streamnode/internal/logging"
)

var log = logging.L("codec")

// Decoder drives one MJPEG -> NV12 hardware context through its lifecycle
// (§4.D decoder specifics). One Decoder owns exactly one backend context;
// callers needing concurrent streams construct multiple Decoders.
type Decoder struct {
	mu      sync.Mutex
	id      uuid.UUID
	state   State
	backend codecBackend
	stats   Stats
}

// NewDecoder runs the common setup contract (create context, one-shot init
// with the MJPEG-decode kind, set the 100ms output poll timeout, and
// pre-allocate hot-path buffers) and returns a context in the Initialized
// state, ready to decode once geometry is learned from the first
// info-change.
func NewDecoder(backend codecBackend) (*Decoder, error) {
	if backend == nil {
		return nil, errs.New(errs.InvalidParam, "codec.NewDecoder", nil)
	}
	if err := backend.InitDecoder(); err != nil {
		return nil, errs.New(errs.Init, "codec.NewDecoder", err)
	}
	return &Decoder{id: uuid.New(), state: Initialized, backend: backend}, nil
}

// ID uniquely identifies this context for logging/metrics correlation.
func (d *Decoder) ID() uuid.UUID { return d.id }

// State reports the current lifecycle stage.
func (d *Decoder) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Stats returns a point-in-time snapshot of this context's counters.
func (d *Decoder) Stats() Snapshot { return d.stats.Snapshot() }

// Decode submits one complete JPEG access unit and attempts to retrieve the
// decoded NV12 frame. On InfoChange or Eos it returns the corresponding
// transient *errs.Error and dst is left untouched; the caller is expected
// to retry the same input on InfoChange.
func (d *Decoder) Decode(dst *frame.Frame, pkt []byte) error {
	if len(pkt) < 2 || pkt[0] != 0xFF || pkt[1] != 0xD8 {
		return errs.New(errs.JpegDecode, "codec.Decoder.Decode", nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Destroyed {
		return errs.New(errs.NotInitialized, "codec.Decoder.Decode", nil)
	}

	start := time.Now()
	err := d.backend.DecodePutPacket(pkt)
	if err != nil {
		d.stats.recordDecode(false, time.Since(start).Nanoseconds(), len(pkt))
		return errs.New(errs.Decode, "codec.Decoder.Decode", err)
	}

	outcome, err := d.backend.DecodeGetFrame()
	elapsed := time.Since(start).Nanoseconds()
	if err != nil {
		d.stats.recordDecode(false, elapsed, len(pkt))
		return errs.New(errs.Decode, "codec.Decoder.Decode", err)
	}

	switch {
	case outcome.InfoChange:
		d.state = InfoChange
		log.Debug("decoder info-change", logging.KeyContextID, d.id, "width", outcome.Width, "height", outcome.Height)
		d.stats.recordDecode(true, elapsed, len(pkt))
		return errs.New(errs.InfoChange, "codec.Decoder.Decode", nil)
	case outcome.EOS:
		d.state = Draining
		d.stats.recordDecode(true, elapsed, len(pkt))
		return errs.New(errs.Eos, "codec.Decoder.Decode", nil)
	case outcome.NV12 == nil:
		d.stats.recordDecode(false, elapsed, len(pkt))
		return errs.New(errs.Decode, "codec.Decoder.Decode", nil)
	}

	d.state = Running
	size := frame.PayloadSize(frame.NV12, outcome.HorStride, outcome.VerStride) // hor_stride*ver_stride*3/2, §4.D(d)
	if err := dst.EnsureCapacity(size); err != nil {
		d.stats.recordDecode(false, elapsed, len(pkt))
		return errs.New(errs.OutOfMemory, "codec.Decoder.Decode", err)
	}
	n := copy(dst.Data, outcome.NV12)
	if n < size {
		d.stats.recordDecode(false, elapsed, len(pkt))
		return errs.New(errs.Decode, "codec.Decoder.Decode", nil)
	}
	dst.Width = outcome.Width
	dst.Height = outcome.Height
	dst.Stride = outcome.HorStride
	dst.Format = frame.NV12
	dst.Used = size
	d.stats.recordDecode(true, elapsed, len(pkt))
	return nil
}

// Close releases the backend context. Idempotent.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Destroyed {
		return nil
	}
	err := d.backend.Close()
	d.state = Destroyed
	return err
}
