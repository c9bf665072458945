package display

import (
	"time"

	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/textrender"
)

// Open acquires the modesetting device, selects a sink and mode, allocates
// framebuffers, and does the first modeset. On any failure the device is
// closed and the Display returns to Idle.
func (d *Display) Open(cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != Idle {
		return errs.New(errs.Init, "display.Open", nil)
	}
	d.state = Opening
	cfg = cfg.withDefaults()
	d.cfg = cfg

	b, err := d.newBackend(cfg.CardPath)
	if err != nil {
		d.state = Idle
		return err
	}
	d.backend = b

	if err := d.acquireMaster(); err != nil {
		b.Close()
		d.state = Idle
		return err
	}

	driverName, err := b.DriverName()
	if err != nil {
		log.Warn("could not read driver name, assuming generic platform", "err", err)
	}
	d.platform = classifyPlatform(driverName)

	if err := d.selectSink(); err != nil {
		b.Close()
		d.state = Idle
		return err
	}

	saved, err := b.GetCrtc(d.crtcID)
	if err != nil {
		b.Close()
		d.state = Idle
		return err
	}
	d.savedCrtc = saved

	if cfg.CaptureConfigured {
		d.mode = DmaMode
		d.liveState = NoSignal
		d.noSignalDeadline = time.Now().Add(cfg.BlankAfter)
	} else {
		d.mode = StubMode
	}

	if err := d.allocateStubFramebuffers(); err != nil {
		b.Close()
		d.state = Idle
		return err
	}

	if err := d.modesetInitial(); err != nil {
		d.releaseStubFramebuffers()
		b.Close()
		d.state = Idle
		return err
	}

	d.state = Open
	log.Info("display opened", "platform", d.platform, "mode", d.mode, "selected", d.selectedMode, "format", d.pixelFormat)
	return nil
}

// acquireMaster drops then sets master to recover from a prior dirty
// handoff (§4.F); a refusal to acquire is logged and tolerated, continuing
// best-effort without page-flip rights rather than failing the open.
func (d *Display) acquireMaster() error {
	_ = d.backend.DropMaster()
	if err := d.backend.SetMaster(); err != nil {
		log.Warn("could not acquire DRM master, continuing best-effort", "err", err)
	}
	return nil
}

// selectSink enumerates connectors, picks the configured or first connected
// one, scores its modes, and selects a compatible CRTC.
func (d *Display) selectSink() error {
	connectors, err := d.backend.GetConnectors()
	if err != nil {
		return err
	}

	var chosen *ConnectorInfo
	for i := range connectors {
		c := &connectors[i]
		if !c.Connected {
			continue
		}
		if d.cfg.PortName != "" {
			if c.PortName() == d.cfg.PortName {
				chosen = c
				break
			}
			continue
		}
		chosen = c
		break
	}
	if chosen == nil {
		return errs.New(errs.NoDevice, "display.selectSink", nil)
	}
	d.connector = *chosen

	mode, ok := selectMode(chosen.Modes, d.cfg.Width, d.cfg.Height, d.cfg.RefreshHz)
	if !ok {
		return errs.New(errs.NoDevice, "display.selectSink(mode)", nil)
	}
	d.selectedMode = mode

	encoders, err := d.backend.GetEncoders()
	if err != nil {
		return err
	}
	crtcIDs, err := d.backend.GetCrtcIDs()
	if err != nil {
		return err
	}
	crtcID, ok := selectCompatibleCrtc(chosen.EncoderIDs, encoders, crtcIDs)
	if !ok {
		return errs.New(errs.NoDevice, "display.selectSink(crtc)", nil)
	}
	d.crtcID = crtcID
	return nil
}

// selectCompatibleCrtc picks the first CRTC any of the connector's encoders
// can drive.
func selectCompatibleCrtc(connectorEncoderIDs []uint32, encoders []EncoderInfo, crtcIDs []uint32) (uint32, bool) {
	byID := make(map[uint32]EncoderInfo, len(encoders))
	for _, e := range encoders {
		byID[e.ID] = e
	}
	for _, eid := range connectorEncoderIDs {
		e, ok := byID[eid]
		if !ok {
			continue
		}
		for _, possible := range e.PossibleCrtcs {
			for _, crtcID := range crtcIDs {
				if possible == crtcID {
					return crtcID, true
				}
			}
		}
	}
	return 0, false
}

// modesetInitial performs the first SetCrtc. Stub mode scans out the first
// stub framebuffer immediately (ONLINE IS ACTIVE); DMA mode leaves the
// actual scanout to the first Present call, but still needs the CRTC driven
// with a valid fb so the sink isn't left in an undefined state.
func (d *Display) modesetInitial() error {
	fbID := d.stubFBs[0].fbID
	if err := d.backend.SetCrtc(d.crtcID, fbID, d.connector.ID, d.selectedMode); err != nil {
		return err
	}
	if d.mode == StubMode {
		return d.drawStub(&d.stubFBs[0], textrender.MsgOnlineActive)
	}
	return nil
}
