// Package jpegdec decodes a complete JPEG bitstream into a raw Frame (§4.C):
// 4:2:0 sources are emitted as planar I420, everything else as packed RGB24.
// Decompression itself is delegated to libjpeg-turbo via cgo; this file
// holds the format-agnostic bookkeeping (SOI validation, backend selection,
// result shaping) that doesn't need the C library to be exercised.
package jpegdec

import (
	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
	"github.com/lanternops/streamnode/internal/logging"
)

var log = logging.L("jpeg")

// backend is implemented by the cgo binding (decode_cgo.go) and by the
// no-cgo stub (decode_nocgo.go) so this package always compiles.
type backend interface {
	decode(src []byte, headerOnly bool) (result, error)
}

// result is what a backend hands back before it's copied into a Frame.
type result struct {
	width, height int
	format        frame.Format // frame.YUV420 or frame.RGB24
	stride        int
	pixels        []byte // nil when headerOnly
}

// Decoder holds no state of its own beyond which backend to call; a fresh
// per-call C decompression context is created and destroyed inside the
// backend so errors can never leak state across calls.
type Decoder struct {
	b backend
}

// New returns a Decoder using the platform's compiled-in backend.
func New() *Decoder {
	return &Decoder{b: newBackend()}
}

// validateSOI checks the JPEG start-of-image marker without touching the
// backend or any destination state, satisfying the boundary requirement
// that short/malformed input never allocates output storage.
func validateSOI(src []byte) error {
	if len(src) < 2 || src[0] != 0xFF || src[1] != 0xD8 {
		return errs.New(errs.JpegDecode, "jpegdec.Decode", nil)
	}
	return nil
}

// Decode parses and fully decompresses src into dst, reusing dst's backing
// buffer where possible. dst is left untouched if decoding fails.
func (d *Decoder) Decode(dst *frame.Frame, src []byte) error {
	return d.decode(dst, src, false)
}

// DecodeHeader parses src's header only, populating dst's geometry/format
// metadata but allocating no pixel storage (`used` stays 0).
func (d *Decoder) DecodeHeader(dst *frame.Frame, src []byte) error {
	return d.decode(dst, src, true)
}

func (d *Decoder) decode(dst *frame.Frame, src []byte, headerOnly bool) error {
	if err := validateSOI(src); err != nil {
		return err
	}
	r, err := d.b.decode(src, headerOnly)
	if err != nil {
		log.Error("jpeg decompression failed", logging.KeyError, err)
		return errs.New(errs.JpegDecode, "jpegdec.Decode", err)
	}

	size := 0
	if !headerOnly {
		size = frame.PayloadSize(r.format, r.width, r.height)
		if len(r.pixels) < size {
			return errs.New(errs.JpegDecode, "jpegdec.Decode", nil)
		}
		if err := dst.EnsureCapacity(size); err != nil {
			return errs.New(errs.OutOfMemory, "jpegdec.Decode", err)
		}
		copy(dst.Data, r.pixels[:size])
	}
	dst.Width = r.width
	dst.Height = r.height
	dst.Format = r.format
	dst.Stride = r.stride
	dst.Used = size
	return nil
}

// sampling4to2to0 reports whether the component sampling factors read from
// the JPEG header describe the standard 4:2:0 layout (luma 2x2, chroma
// 1x1 each) that §4.C requires for the I420 output path.
func sampling4to2to0(lumaH, lumaV, cbH, cbV, crH, crV int) bool {
	return lumaH == 2 && lumaV == 2 && cbH == 1 && cbV == 1 && crH == 1 && crV == 1
}
