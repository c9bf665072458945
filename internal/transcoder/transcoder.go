// Package transcoder orchestrates the per-frame dispatch (§4.E): decode
// MJPEG/JPEG through the vendor codec front end, pass NV12 through
// zero-copy, or run the §4.B conversion matrix for anything else, then
// encode the result to H.264.
package transcoder

import (
	"sync"
	"time"

	"github.com/lanternops/streamnode/internal/codec"
	"github.com/lanternops/streamnode/internal/convert"
	"github.com/lanternops/streamnode/internal/frame"
	"github.com/lanternops/streamnode/internal/logging"
)

var log = logging.L("transcoder")

// Config carries the encoder's rate-control/H.264 parameter blocks plus the
// supplemented fps-limiter (not part of spec.md's core orchestration logic,
// but guards only this package's own dispatch and adds no external surface).
type Config struct {
	RC               codec.RateControl
	H264             codec.H264Params
	MinFrameInterval time.Duration
}

// Transcoder holds the lazily-created decode/encode contexts and the owned
// intermediate buffers frames are converted into before encoding.
type Transcoder struct {
	mu  sync.Mutex
	cfg Config

	decoder *codec.Decoder
	encoder *codec.Encoder

	// newDecoder/newEncoder construct the lazily-created codec contexts.
	// They default to the software backend; tests substitute fakes so
	// orchestration logic is exercised without a real hardware/cgo path.
	newDecoder func() (*codec.Decoder, error)
	newEncoder func(w, h int) (*codec.Encoder, error)

	lastFormat      frame.Format
	formatKnown     bool
	convertRequired bool
	maxW, maxH      int // first MJPEG/JPEG frame's geometry wins

	convBuf frame.Frame
	nv12Buf frame.Frame

	lastEncodeAt time.Time
	stats        Stats
}

// New constructs a Transcoder. Decode/encode contexts are created lazily on
// first use so construction never touches a codec backend.
func New(cfg Config) *Transcoder {
	t := &Transcoder{cfg: cfg}
	t.newDecoder = func() (*codec.Decoder, error) {
		return codec.NewDecoder(codec.NewSoftwareBackend())
	}
	t.newEncoder = func(w, h int) (*codec.Encoder, error) {
		return codec.NewEncoder(codec.NewSoftwareBackend(), w, h, t.cfg.RC, t.cfg.H264)
	}
	return t
}

func (t *Transcoder) Stats() Snapshot { return t.stats.Snapshot() }

// Transcode ingests one source frame and, on success, writes the resulting
// H.264 access unit to dst. On InfoChange the caller should resubmit the
// same src; dst is left untouched in that case (§4.E point 1).
func (t *Transcoder) Transcode(dst *frame.Frame, src *frame.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()
	if !t.formatKnown || src.Format != t.lastFormat {
		t.formatKnown = true
		t.lastFormat = src.Format
		t.convertRequired = src.Format != frame.MJPEG && src.Format != frame.JPEG && src.Format != frame.NV12
		log.Debug("input format changed", "format", src.Format, "convertRequired", t.convertRequired)
	}

	nv12Src, err := t.toNV12(src)
	if err != nil {
		// InfoChange/Eos are soft per §7 but still count against the
		// aggregate error total here; the caller distinguishes them via
		// errs.KindOf before deciding whether to retry.
		t.stats.record(false, time.Since(start).Nanoseconds(), src.Used, 0)
		return err
	}

	if t.cfg.MinFrameInterval > 0 {
		now := time.Now()
		if !t.lastEncodeAt.IsZero() && now.Sub(t.lastEncodeAt) < t.cfg.MinFrameInterval {
			dst.Used = 0
			t.stats.record(true, time.Since(start).Nanoseconds(), src.Used, 0)
			return nil
		}
		t.lastEncodeAt = now
	}

	if err := t.ensureEncoder(nv12Src.Width, nv12Src.Height); err != nil {
		t.stats.record(false, time.Since(start).Nanoseconds(), src.Used, 0)
		return err
	}
	if err := t.encoder.Encode(dst, nv12Src.Data[:nv12Src.Used], false); err != nil {
		t.stats.record(false, time.Since(start).Nanoseconds(), src.Used, 0)
		return err
	}
	t.stats.record(true, time.Since(start).Nanoseconds(), src.Used, dst.Used)
	return nil
}

// toNV12 returns the frame that should be fed to the encoder: the owned
// decode intermediate, the caller's frame by reference (NV12 pass-through),
// or the owned conversion buffer.
func (t *Transcoder) toNV12(src *frame.Frame) (*frame.Frame, error) {
	switch src.Format {
	case frame.MJPEG, frame.JPEG:
		if err := t.ensureDecoder(); err != nil {
			return nil, err
		}
		if src.Width > t.maxW {
			t.maxW = src.Width
		}
		if src.Height > t.maxH {
			t.maxH = src.Height
		}
		if err := t.decoder.Decode(&t.nv12Buf, src.Data[:src.Used]); err != nil {
			return nil, err
		}
		return &t.nv12Buf, nil
	case frame.NV12:
		return src, nil
	default:
		if err := convert.Convert(&t.convBuf, frame.NV12, src.Width, src.Height, convert.Offset{}, src.Format, src.Data[:src.Used], src.Width, src.Height, src.Stride); err != nil {
			return nil, err
		}
		return &t.convBuf, nil
	}
}

func (t *Transcoder) ensureDecoder() error {
	if t.decoder != nil {
		return nil
	}
	dec, err := t.newDecoder()
	if err != nil {
		return err
	}
	t.decoder = dec
	return nil
}

func (t *Transcoder) ensureEncoder(frameW, frameH int) error {
	if t.encoder != nil {
		return nil
	}
	w, h := frameW, frameH
	if t.maxW > w {
		w = t.maxW
	}
	if t.maxH > h {
		h = t.maxH
	}
	enc, err := t.newEncoder(w, h)
	if err != nil {
		return err
	}
	t.encoder = enc
	return nil
}

// Close releases any codec contexts this transcoder created.
func (t *Transcoder) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	if t.decoder != nil {
		if err := t.decoder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if t.encoder != nil {
		if err := t.encoder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
