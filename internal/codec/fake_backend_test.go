package codec

// fakeBackend is a scriptable codecBackend used by every test in this
// package so the state machine, statistics, and config mutators are
// exercised without real hardware or the software cgo path.
type fakeBackend struct {
	initDecoderErr error
	initEncoderErr error

	decodeOutcomes []DecodeOutcome
	decodeErrs     []error
	decodeCall     int

	encodeOutcomes []EncodeOutcome
	encodeErrs     []error
	encodeCall     int

	putPacketErr error
	putFrameErr  error

	rc   RateControl
	h264 H264Params

	closed bool
}

func (b *fakeBackend) InitDecoder() error { return b.initDecoderErr }

func (b *fakeBackend) InitEncoder(width, height int, rc RateControl, h264 H264Params) error {
	b.rc, b.h264 = rc, h264
	return b.initEncoderErr
}

func (b *fakeBackend) DecodePutPacket(pkt []byte) error { return b.putPacketErr }

func (b *fakeBackend) DecodeGetFrame() (DecodeOutcome, error) {
	i := b.decodeCall
	b.decodeCall++
	var err error
	if i < len(b.decodeErrs) {
		err = b.decodeErrs[i]
	}
	var out DecodeOutcome
	if i < len(b.decodeOutcomes) {
		out = b.decodeOutcomes[i]
	}
	return out, err
}

func (b *fakeBackend) EncodePutFrame(nv12 []byte, forceKeyframe bool) error { return b.putFrameErr }

func (b *fakeBackend) EncodeGetPacket() (EncodeOutcome, error) {
	i := b.encodeCall
	b.encodeCall++
	var err error
	if i < len(b.encodeErrs) {
		err = b.encodeErrs[i]
	}
	var out EncodeOutcome
	if i < len(b.encodeOutcomes) {
		out = b.encodeOutcomes[i]
	}
	return out, err
}

func (b *fakeBackend) SetRateControl(rc RateControl) error { b.rc = rc; return nil }
func (b *fakeBackend) SetH264Params(h264 H264Params) error { b.h264 = h264; return nil }

func (b *fakeBackend) Close() error {
	b.closed = true
	return nil
}
