package codec

// RateControl carries the encoder's rate-control configuration block (§4.D).
type RateControl struct {
	Mode       RCMode
	BitrateBps int
	FPSNum     int
	FPSDen     int
	GOPSize    int
}

func (rc RateControl) bpsMax() int { return rc.BitrateBps * 12 / 10 }
func (rc RateControl) bpsMin() int { return rc.BitrateBps * 8 / 10 }

// H264Params carries the encoder's codec-level configuration block (§4.D).
type H264Params struct {
	Profile int // default 100 (High)
	Level   int // default 40 (4.0)
	QPInit  int
	QPMin   int
	QPMax   int
}

// DefaultH264Params matches §4.D's stated defaults.
func DefaultH264Params() H264Params {
	return H264Params{Profile: 100, Level: 40, QPInit: 24, QPMin: 16, QPMax: 40}
}

// DecodeOutcome is the backend's answer to DecodeGetFrame, one of the four
// shapes §4.D enumerates.
type DecodeOutcome struct {
	InfoChange bool
	EOS        bool
	Width      int
	Height     int
	HorStride  int
	VerStride  int
	NV12       []byte // valid only when neither InfoChange nor EOS and no error
}

// EncodeOutcome is the backend's answer to EncodeGetPacket.
type EncodeOutcome struct {
	Timeout  bool
	Keyframe bool
	Payload  []byte
}

// codecBackend abstracts the vendor codec SDK (Rockchip-MPP-shaped in the
// real implementation: mpp_create, decode_put_packet/decode_get_frame,
// encode_put_frame/encode_get_packet, buffer groups) so the state-machine
// and statistics logic above it never touches C directly and can be
// exercised against a fake in tests.
type codecBackend interface {
	// InitDecoder prepares the context for MJPEG->NV12 decode: split_parse
	// enabled, NV12 output format, 24 pre-allocated output buffers sized
	// align16(w)*align16(h)*4 once geometry is known from the first
	// info-change.
	InitDecoder() error
	// InitEncoder prepares the context for NV12->H.264 encode at the given
	// geometry, rate control and H.264 parameter blocks.
	InitEncoder(width, height int, rc RateControl, h264 H264Params) error

	// DecodePutPacket submits one compressed JPEG access unit. The caller
	// has already validated the SOI marker.
	DecodePutPacket(pkt []byte) error
	// DecodeGetFrame polls for a decoded frame, returning one of the four
	// outcome shapes in DecodeOutcome.
	DecodeGetFrame() (DecodeOutcome, error)

	// EncodePutFrame submits one NV12 frame; forceKeyframe sets the
	// OUTPUT_INTRA meta key.
	EncodePutFrame(nv12 []byte, forceKeyframe bool) error
	// EncodeGetPacket polls for the resulting bitstream, capping retries at
	// 30 iterations with 1ms backoff internally.
	EncodeGetPacket() (EncodeOutcome, error)

	SetRateControl(rc RateControl) error
	SetH264Params(h264 H264Params) error

	Close() error
}
