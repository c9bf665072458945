package display

import (
	"time"

	"github.com/lanternops/streamnode/internal/frame"
)

// fakeBackend is a scriptable backend used by every test in this package,
// mirroring internal/codec's fakeBackend seam so the open/close lifecycle,
// mode negotiation, and scan-out paths are exercised without a real DRM
// device.
type fakeBackend struct {
	driverName    string
	driverNameErr error

	setMasterErr  error
	dropMasterErr error

	connectors []ConnectorInfo
	encoders   []EncoderInfo
	crtcIDs    []uint32
	crtc       CrtcState

	setCrtcErr        error
	setCrtcCalls      int
	restoreCrtcCalled CrtcState

	nextHandle uint32
	nextFBID   uint32
	dumb       map[uint32]DumbBuffer
	destroyed  map[uint32]bool

	addFBErrFor    map[frame.Format]error
	importErr      error
	removedFBs     []uint32

	pageFlipErr   error
	pageFlipCalls int
	waitEventSeq  []bool
	waitEventErr  error
	waitEventIdx  int

	dpmsCalls []bool

	closed bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		driverName:  "generic-drm",
		dumb:        make(map[uint32]DumbBuffer),
		destroyed:   make(map[uint32]bool),
		addFBErrFor: make(map[frame.Format]error),
	}
}

func (b *fakeBackend) DriverName() (string, error) { return b.driverName, b.driverNameErr }
func (b *fakeBackend) SetMaster() error             { return b.setMasterErr }
func (b *fakeBackend) DropMaster() error            { return b.dropMasterErr }

func (b *fakeBackend) GetConnectors() ([]ConnectorInfo, error) { return b.connectors, nil }
func (b *fakeBackend) GetEncoders() ([]EncoderInfo, error)     { return b.encoders, nil }
func (b *fakeBackend) GetCrtcIDs() ([]uint32, error)           { return b.crtcIDs, nil }
func (b *fakeBackend) GetCrtc(crtcID uint32) (CrtcState, error) {
	return b.crtc, nil
}

func (b *fakeBackend) SetCrtc(crtcID, fbID, connectorID uint32, mode ModeInfo) error {
	b.setCrtcCalls++
	return b.setCrtcErr
}

func (b *fakeBackend) RestoreCrtc(saved CrtcState) error {
	b.restoreCrtcCalled = saved
	b.crtc = saved
	return nil
}

func (b *fakeBackend) CreateDumb(width, height, bpp uint32) (DumbBuffer, error) {
	b.nextHandle++
	pitch := width * (bpp / 8)
	buf := DumbBuffer{Handle: b.nextHandle, Pitch: pitch, Size: uint64(pitch * height)}
	b.dumb[buf.Handle] = buf
	return buf, nil
}

func (b *fakeBackend) MapDumb(buf *DumbBuffer) error {
	buf.Mapped = make([]byte, buf.Size)
	b.dumb[buf.Handle] = *buf
	return nil
}

func (b *fakeBackend) DestroyDumb(buf DumbBuffer) error {
	b.destroyed[buf.Handle] = true
	delete(b.dumb, buf.Handle)
	return nil
}

func (b *fakeBackend) AddFB(buf DumbBuffer, width, height uint32, format frame.Format) (uint32, error) {
	if err, ok := b.addFBErrFor[format]; ok {
		return 0, err
	}
	b.nextFBID++
	return b.nextFBID, nil
}

func (b *fakeBackend) ImportPrimeFD(dmaFD int, width, height uint32, format frame.Format) (uint32, error) {
	if b.importErr != nil {
		return 0, b.importErr
	}
	b.nextFBID++
	return b.nextFBID, nil
}

func (b *fakeBackend) RemoveFB(fbID uint32) error {
	b.removedFBs = append(b.removedFBs, fbID)
	return nil
}

func (b *fakeBackend) PageFlip(crtcID, fbID uint32, withEvent bool) error {
	b.pageFlipCalls++
	return b.pageFlipErr
}

func (b *fakeBackend) WaitEvent(timeout time.Duration) (bool, error) {
	if b.waitEventErr != nil {
		return false, b.waitEventErr
	}
	if b.waitEventIdx >= len(b.waitEventSeq) {
		return true, nil
	}
	got := b.waitEventSeq[b.waitEventIdx]
	b.waitEventIdx++
	return got, nil
}

func (b *fakeBackend) SetDPMS(connectorID, propertyID uint32, on bool) error {
	b.dpmsCalls = append(b.dpmsCalls, on)
	return nil
}

func (b *fakeBackend) Close() error {
	b.closed = true
	return nil
}

// singleConnectorFixture returns a minimal GetConnectors/GetEncoders/GetCrtcIDs
// setup with one connected HDMI-A connector offering a 1280x720@60 mode,
// compatible with one encoder driving one CRTC.
func singleConnectorFixture() (*fakeBackend, Config) {
	b := newFakeBackend()
	b.connectors = []ConnectorInfo{
		{
			ID:         1,
			Type:       11, // HDMI-A
			TypeID:     0,
			Connected:  true,
			EncoderIDs: []uint32{5},
			Modes: []ModeInfo{
				{Width: 1280, Height: 720, Refresh: 60, Preferred: true},
			},
			DPMSPropertyID: 7,
		},
	}
	b.encoders = []EncoderInfo{{ID: 5, PossibleCrtcs: []uint32{9}}}
	b.crtcIDs = []uint32{9}
	b.crtc = CrtcState{CrtcID: 9, FbID: 0, ModeValid: false}

	cfg := Config{Width: 1280, Height: 720, RefreshHz: 60}
	return b, cfg
}

func newTestDisplay(b *fakeBackend) *Display {
	d := New()
	d.newBackend = func(string) (backend, error) { return b, nil }
	return d
}
