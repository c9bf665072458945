package display

import (
	"strconv"
	"time"

	"github.com/lanternops/streamnode/internal/frame"
)

// ConnectorInfo is the Go-native projection of a DRM connector.
type ConnectorInfo struct {
	ID             uint32
	Type, TypeID   uint32
	Connected      bool
	EncoderIDs     []uint32
	Modes          []ModeInfo
	DPMSPropertyID uint32 // 0 if the connector exposes no DPMS property
}

// PortName returns the "<type>-<type_id>" identifier §4.F remembers so a
// configured port name can be matched against future opens.
func (c ConnectorInfo) PortName() string {
	return connectorTypeName(c.Type) + "-" + strconv.Itoa(int(c.TypeID))
}

// EncoderInfo is the Go-native projection of a DRM encoder.
type EncoderInfo struct {
	ID            uint32
	PossibleCrtcs []uint32 // CRTC IDs this encoder can drive, in resource order
}

// CrtcState is the saved CRTC configuration restored on close, compared
// bit-for-bit against the post-restore state by the testable invariant in
// §8.
type CrtcState struct {
	CrtcID    uint32
	FbID      uint32
	X, Y      uint32
	ModeValid bool
	Mode      any // opaque wire-format mode, round-tripped untouched
}

// DumbBuffer is a mapped or unmapped dumb scanout buffer.
type DumbBuffer struct {
	Handle uint32
	FBID   uint32
	Pitch  uint32
	Size   uint64
	Mapped []byte
}

// backend abstracts every DRM/KMS ioctl the runtime needs so tests can
// substitute a fake (mirroring internal/codec's codecBackend split between
// a real vendor binding and a scriptable test double).
type backend interface {
	DriverName() (string, error)
	SetMaster() error
	DropMaster() error

	GetConnectors() ([]ConnectorInfo, error)
	GetEncoders() ([]EncoderInfo, error)
	GetCrtcIDs() ([]uint32, error)
	GetCrtc(crtcID uint32) (CrtcState, error)

	// SetCrtc drives crtcID with fbID/mode on connectorID, retrying once on
	// EBUSY per the ustreamer-derived supplement before giving up.
	SetCrtc(crtcID, fbID, connectorID uint32, mode ModeInfo) error
	RestoreCrtc(saved CrtcState) error

	CreateDumb(width, height uint32, bpp uint32) (DumbBuffer, error)
	MapDumb(buf *DumbBuffer) error
	DestroyDumb(buf DumbBuffer) error

	AddFB(buf DumbBuffer, width, height uint32, format frame.Format) (fbID uint32, err error)
	ImportPrimeFD(dmaFD int, width, height uint32, format frame.Format) (fbID uint32, err error)
	RemoveFB(fbID uint32) error

	PageFlip(crtcID, fbID uint32, withEvent bool) error
	// WaitEvent blocks on the device fd for up to timeout, servicing at
	// most one pending event. A zero return with no error means the wait
	// timed out without an event (not an error condition).
	WaitEvent(timeout time.Duration) (gotEvent bool, err error)

	SetDPMS(connectorID, propertyID uint32, on bool) error

	Close() error
}

func connectorTypeName(t uint32) string {
	if name, ok := connectorTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// connectorTypeNames covers the connector types real SBC HDMI/DSI/composite
// outputs actually report; anything else reads as "unknown" rather than
// failing the probe.
var connectorTypeNames = map[uint32]string{
	1:  "VGA",
	3:  "DVI-I",
	4:  "DVI-D",
	5:  "DVI-A",
	7:  "LVDS",
	9:  "Composite",
	11: "HDMI-A",
	12: "HDMI-B",
	14: "DSI",
	15: "DPI",
}
