package display

import (
	"sync"
	"time"

	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
	"github.com/lanternops/streamnode/internal/logging"
)

var log = logging.L("display")

// Config describes the requested sink and timing. CaptureConfigured selects
// Stub vs Dma mode at Open and is never re-evaluated afterwards.
type Config struct {
	CardPath          string
	PortName          string // empty = pick first connected connector
	Width, Height     uint16
	RefreshHz         uint32
	PreferredFormat   frame.Format
	CaptureConfigured bool
	BlankAfter        time.Duration
	VsyncTimeout      time.Duration
}

func (c Config) withDefaults() Config {
	if c.CardPath == "" {
		c.CardPath = "/dev/dri/card0"
	}
	if c.PreferredFormat == "" {
		c.PreferredFormat = frame.XRGB8888
	}
	if c.BlankAfter <= 0 {
		c.BlankAfter = 5 * time.Second
	}
	if c.VsyncTimeout <= 0 {
		c.VsyncTimeout = 100 * time.Millisecond
	}
	return c
}

// Display drives a single DRM/KMS sink through its Idle -> Opening ->
// Open(Stub|Dma) -> Closing -> Idle lifecycle. One object owns one CRTC.
type Display struct {
	mu      sync.Mutex
	cfg     Config
	backend backend

	state    State
	mode     Mode
	platform Platform

	connector    ConnectorInfo
	crtcID       uint32
	selectedMode ModeInfo
	pixelFormat  frame.Format
	savedCrtc    CrtcState

	stubFBs []stubSlot
	stubIdx int

	dmaFBs      map[int]dmaSlot // capture buffer index -> imported fb (rpi/generic)
	cpuLiveSlot *stubSlot       // owned conversion target (amlogic, or DMA-import fallback)

	liveState        LiveState
	noSignalDeadline time.Time

	pendingRelease func()
	pendingValid   bool
	hasVsync       bool

	// newBackend is overridable so tests substitute a fake (mirrors
	// internal/codec's codecBackend test seam).
	newBackend func(cardPath string) (backend, error)
}

type stubSlot struct {
	buf  DumbBuffer
	fbID uint32
}

type dmaSlot struct {
	fbID uint32 // framebuffer bound via ImportPrimeFD, cached by capture buffer index
}

// New constructs a closed Display. Open must be called before use.
func New() *Display {
	d := &Display{dmaFBs: make(map[int]dmaSlot)}
	d.newBackend = newIoctlBackend
	return d
}

func (d *Display) State() State       { d.mu.Lock(); defer d.mu.Unlock(); return d.state }
func (d *Display) Mode() Mode         { d.mu.Lock(); defer d.mu.Unlock(); return d.mode }
func (d *Display) Platform() Platform { d.mu.Lock(); defer d.mu.Unlock(); return d.platform }
func (d *Display) LiveState() LiveState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.liveState
}

// SelectedMode reports the mode chosen at Open (zero value if not open).
func (d *Display) SelectedMode() ModeInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selectedMode
}

func (d *Display) requireOpen(op string) error {
	if d.state != Open {
		return errs.New(errs.NotInitialized, op, nil)
	}
	return nil
}
