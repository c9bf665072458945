package display

import "github.com/lanternops/streamnode/internal/errs"

// Close tears the sink back down to its pre-open CRTC configuration and
// releases every framebuffer this Display owns. §8's testable property is
// that the restored CrtcState compares bit-for-bit equal to the one saved
// at Open.
func (d *Display) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != Open {
		return errs.New(errs.NotInitialized, "display.Close", nil)
	}
	d.state = Closing

	d.waitPendingLocked()

	var firstErr error
	if err := d.backend.RestoreCrtc(d.savedCrtc); err != nil && firstErr == nil {
		firstErr = err
	}

	d.releaseDMAFramebuffers()
	d.releaseCPULiveSlot()
	d.releaseStubFramebuffers()

	if err := d.backend.DropMaster(); err != nil {
		log.Warn("DropMaster on close failed", "err", err)
	}
	if err := d.backend.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	d.state = Idle
	d.mode = 0
	d.liveState = 0
	d.hasVsync = false
	log.Info("display closed")
	return firstErr
}
