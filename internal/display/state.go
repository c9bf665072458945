// Package display drives the DRM/KMS modesetting device (§4.F): opening and
// sink selection, framebuffer management across stub and DMA-import modes,
// platform-specific scan-out strategies, vsync waiting, the stub overlay
// (via internal/textrender), and the no-signal/blank policy.
package display

// State is the top-level lifecycle of a Display.
type State int

const (
	Idle State = iota
	Opening
	Open
	Closing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Opening:
		return "Opening"
	case Open:
		return "Open"
	case Closing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// Mode is the sub-state an open Display runs in, frozen for the lifetime of
// the open/close cycle (never toggled mid-session, matching how the
// platform's scan-out strategy is also chosen once at open).
type Mode int

const (
	// StubMode: no capture source configured; the engine only ever shows
	// canned status overlays.
	StubMode Mode = iota
	// DmaMode: a capture source is present; live frames are scanned out,
	// falling back to stub overlays on format/resolution mismatch or
	// signal loss.
	DmaMode
)

func (m Mode) String() string {
	if m == StubMode {
		return "Stub"
	}
	return "Dma"
}

// LiveState applies only within Open(Dma): whether the last presented input
// was a live frame, absent (counting down to blank), already blanked, or the
// scan-out device itself has gone away.
type LiveState int

const (
	Live LiveState = iota
	NoSignal
	Blanked
	// Disconnected means the last DMA import reported the device gone
	// (errs.NoDevice), not merely an import or format failure. No
	// fallback scan-out is attempted while in this state: every Present
	// call re-probes the import until the device replugs, but never
	// drives a page flip or SetCrtc in between.
	Disconnected
)

func (l LiveState) String() string {
	switch l {
	case Live:
		return "Live"
	case NoSignal:
		return "NoSignal"
	case Blanked:
		return "Blanked"
	case Disconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// Platform is the scan-out strategy variant, classified once at open from
// the driver name and never re-evaluated for the life of the session.
type Platform int

const (
	PlatformGeneric Platform = iota
	PlatformRPi
	PlatformAmlogic
)

func (p Platform) String() string {
	switch p {
	case PlatformRPi:
		return "rpi"
	case PlatformAmlogic:
		return "amlogic"
	default:
		return "generic"
	}
}

// classifyPlatform maps a DRM driver name to its scan-out strategy variant.
func classifyPlatform(driverName string) Platform {
	switch driverName {
	case "vc4":
		return PlatformRPi
	case "meson":
		return PlatformAmlogic
	default:
		return PlatformGeneric
	}
}
