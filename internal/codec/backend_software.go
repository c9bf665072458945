package codec

import (
	openh264 "github.com/y9o/go-openh264"

	"github.com/lanternops/streamnode/internal/convert"
	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
	"github.com/lanternops/streamnode/internal/jpegdec"
)

func align16(v int) int { return (v + 15) &^ 15 }

// softwareBackend implements codecBackend without a vendor accelerator.
// MJPEG decode runs through the in-process libjpeg-turbo binding
// (internal/jpegdec) plus the format conversion matrix; H.264 encode runs
// through the go-openh264 cgo binding. It is the default backend so the
// module always compiles and runs end-to-end without a vendor SDK linked,
// mirroring the teacher's software fallback behind its encoderBackend
// interface.
type softwareBackend struct {
	dec            *jpegdec.Decoder
	pendingPkt     []byte
	geometryKnown  bool
	knownW, knownH int

	enc    *openh264.Encoder
	rc     RateControl
	h264   H264Params
	width  int
	height int
}

// NewSoftwareBackend constructs the default, always-available codecBackend.
func NewSoftwareBackend() codecBackend {
	return &softwareBackend{dec: jpegdec.New()}
}

func (b *softwareBackend) InitDecoder() error { return nil }

func (b *softwareBackend) InitEncoder(width, height int, rc RateControl, h264 H264Params) error {
	enc, err := openh264.NewEncoder(openh264.EncoderConfig{
		Width:      width,
		Height:     height,
		BitrateBps: rc.BitrateBps,
		FPSNum:     rc.FPSNum,
		FPSDen:     rc.FPSDen,
		GOPSize:    rc.GOPSize,
	})
	if err != nil {
		return err
	}
	b.enc = enc
	b.width, b.height = width, height
	b.rc, b.h264 = rc, h264
	return nil
}

func (b *softwareBackend) DecodePutPacket(pkt []byte) error {
	b.pendingPkt = append(b.pendingPkt[:0], pkt...)
	return nil
}

// DecodeGetFrame decodes the pending JPEG and converts it to NV12. The
// first time a given geometry is observed it reports InfoChange without
// pixel data, matching the hardware handshake the orchestration logic
// above this interface is written against; the caller resubmits the same
// packet, and the (cheap, software) decode simply runs again.
func (b *softwareBackend) DecodeGetFrame() (DecodeOutcome, error) {
	var yuv frame.Frame
	if err := b.dec.Decode(&yuv, b.pendingPkt); err != nil {
		return DecodeOutcome{}, err
	}

	if !b.geometryKnown || yuv.Width != b.knownW || yuv.Height != b.knownH {
		b.geometryKnown = true
		b.knownW, b.knownH = yuv.Width, yuv.Height
		return DecodeOutcome{
			InfoChange: true,
			Width:      yuv.Width,
			Height:     yuv.Height,
			HorStride:  align16(yuv.Width),
			VerStride:  align16(yuv.Height),
		}, nil
	}

	var nv12 frame.Frame
	var err error
	switch yuv.Format {
	case frame.YUV420:
		err = convert.YUV420ToNV12(&nv12, yuv.Width, yuv.Height, convert.Offset{}, yuv.Data, yuv.Width, yuv.Height, yuv.Stride)
	default: // RGB24, for non-4:2:0 JPEGs
		err = convert.RGB24ToNV12(&nv12, yuv.Width, yuv.Height, convert.Offset{}, yuv.Data, yuv.Width, yuv.Height, yuv.Stride)
	}
	if err != nil {
		return DecodeOutcome{}, err
	}
	return DecodeOutcome{
		Width:     yuv.Width,
		Height:    yuv.Height,
		HorStride: yuv.Width,
		VerStride: yuv.Height,
		NV12:      nv12.Data[:nv12.Used],
	}, nil
}

// nv12ToI420 deinterleaves NV12 chroma into the planar I420 layout OpenH264
// requires. This is a backend-internal concern, not part of the public
// conversion matrix in internal/convert, since no production pipeline stage
// needs NV12 -> I420 outside of feeding this particular encoder.
func nv12ToI420(nv12 []byte, width, height int) []byte {
	lumaSize := width * height
	chromaW, chromaH := (width+1)/2, (height+1)/2
	out := make([]byte, lumaSize+2*chromaW*chromaH)
	copy(out, nv12[:lumaSize])
	uv := nv12[lumaSize:]
	u := out[lumaSize : lumaSize+chromaW*chromaH]
	v := out[lumaSize+chromaW*chromaH:]
	for i := 0; i < chromaW*chromaH; i++ {
		u[i] = uv[2*i]
		v[i] = uv[2*i+1]
	}
	return out
}

func (b *softwareBackend) EncodePutFrame(nv12 []byte, forceKeyframe bool) error {
	if b.enc == nil {
		return errs.New(errs.NotInitialized, "codec.softwareBackend.EncodePutFrame", nil)
	}
	if forceKeyframe {
		b.enc.ForceIntraFrame()
	}
	i420 := nv12ToI420(nv12, b.width, b.height)
	return b.enc.Encode(i420)
}

func (b *softwareBackend) EncodeGetPacket() (EncodeOutcome, error) {
	payload, keyframe, ready, err := b.enc.ReadPacket()
	if err != nil {
		return EncodeOutcome{}, err
	}
	if !ready {
		return EncodeOutcome{Timeout: true}, nil
	}
	return EncodeOutcome{Payload: payload, Keyframe: keyframe}, nil
}

func (b *softwareBackend) SetRateControl(rc RateControl) error {
	if b.enc == nil {
		return errs.New(errs.NotInitialized, "codec.softwareBackend.SetRateControl", nil)
	}
	b.rc = rc
	return b.enc.SetBitrate(rc.BitrateBps)
}

func (b *softwareBackend) SetH264Params(h264 H264Params) error {
	b.h264 = h264
	// go-openh264 fixes profile/level/QP range at construction time; later
	// mutation is accepted here (so config mutators stay valid post-init
	// per §4.D) but only takes effect on the next InitEncoder call.
	return nil
}

func (b *softwareBackend) Close() error {
	if b.enc == nil {
		return nil
	}
	return b.enc.Close()
}
