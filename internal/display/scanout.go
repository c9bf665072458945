package display

import (
	"time"

	"github.com/lanternops/streamnode/internal/convert"
	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
	"github.com/lanternops/streamnode/internal/textrender"
)

// Present hands one capture buffer (or nil, meaning "no frame arrived this
// tick") to the sink. It never blocks on the producer: release, if non-nil,
// is called once the buffer is no longer needed, either synchronously (CPU
// paths, rejected frames) or after the scanned-out flip completes (DMA
// import on rpi/generic).
func (d *Display) Present(buf *frame.CaptureBuffer, release func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.requireOpen("display.Present"); err != nil {
		if release != nil {
			release()
		}
		return err
	}

	if d.mode == StubMode {
		if buf != nil && release != nil {
			release()
		}
		return d.presentStubLocked(textrender.MsgOnlineActive)
	}

	if buf == nil {
		return d.presentNoSignalLocked()
	}

	if buf.Raw.Width > int(d.selectedMode.Width) || buf.Raw.Height > int(d.selectedMode.Height) {
		if release != nil {
			release()
		}
		return d.presentStubLocked(textrender.MsgUnsupportedResolution)
	}
	if !d.formatAcceptableLocked(buf.Raw.Format) {
		if release != nil {
			release()
		}
		return d.presentStubLocked(textrender.MsgUnsupportedCaptureFormat)
	}

	d.resumeFromBlankLocked()
	d.noSignalDeadline = time.Time{}

	return d.presentLiveLocked(buf, release)
}

// formatAcceptableLocked reports whether buf's pixel format can reach the
// sink's negotiated pixelFormat: either directly (DMA import/passthrough) or
// through internal/convert's CPU conversion matrix.
func (d *Display) formatAcceptableLocked(srcFormat frame.Format) bool {
	if srcFormat == d.pixelFormat {
		return true
	}
	return convert.Supported(srcFormat, d.pixelFormat)
}

// presentLiveLocked dispatches to the platform's scan-out strategy. Only a
// failed DMA *import* falls back to the CPU path: release is untouched up
// to that point, so the fallback's eventual release call is the only one.
// A failure after import (the flip itself) is terminal and already owns
// the one release call, via flipAndWaitLocked.
//
// An import failure carrying errs.NoDevice means the sink itself is gone
// (unplugged), not just a format or fencing problem the CPU path could
// paper over: scanning out anything, stub or converted, would either block
// on a dead fd or fail the same way. That case skips the CPU fallback and
// the page-flip path entirely and parks the display in Disconnected until
// a later Present call's re-probe succeeds.
func (d *Display) presentLiveLocked(buf *frame.CaptureBuffer, release func()) error {
	if d.platform == PlatformAmlogic {
		d.liveState = Live
		return d.presentLiveCPULocked(buf, release)
	}
	if buf.HasDMA() {
		fbID, err := d.importDMAFBLocked(buf)
		if err == nil {
			d.liveState = Live
			return d.flipAndWaitLocked(fbID, release)
		}
		if k, ok := errs.KindOf(err); ok && k == errs.NoDevice {
			log.Warn("display sink disconnected, waiting for replug", "err", err)
			d.liveState = Disconnected
			if release != nil {
				release()
			}
			return nil
		}
		log.Warn("DMA import failed, converting on the CPU instead", "err", err)
	}
	d.liveState = Live
	return d.presentLiveCPULocked(buf, release)
}

// importDMAFBLocked imports a capture buffer's dma-buf fd once per buffer
// index and caches the resulting fbID for subsequent frames reusing the
// same producer-side slot.
func (d *Display) importDMAFBLocked(buf *frame.CaptureBuffer) (uint32, error) {
	if slot, ok := d.dmaFBs[buf.Index]; ok {
		return slot.fbID, nil
	}
	fbID, err := d.backend.ImportPrimeFD(buf.DMAFd, uint32(d.selectedMode.Width), uint32(d.selectedMode.Height), buf.Raw.Format)
	if err != nil {
		return 0, err
	}
	d.dmaFBs[buf.Index] = dmaSlot{fbID: fbID}
	return fbID, nil
}

// presentLiveCPULocked converts buf into the owned conversion-target dumb
// buffer and scans that out. On amlogic this is the only live path (events
// aren't reliably delivered, so hasVsync is self-asserted); elsewhere it is
// the DMA-import fallback.
func (d *Display) presentLiveCPULocked(buf *frame.CaptureBuffer, release func()) error {
	if err := d.ensureCPULiveSlot(); err != nil {
		if release != nil {
			release()
		}
		return err
	}

	dstW, dstH := int(d.selectedMode.Width), int(d.selectedMode.Height)
	off := convert.CenterOffset(dstW, dstH, buf.Raw.Width, buf.Raw.Height)

	var scratch *frame.Frame
	var err error
	if buf.Raw.Format == d.pixelFormat {
		// Same format on both sides: no pixel-format conversion needed, just
		// a centered row copy (convert's matrix has no X->X identity entry).
		scratch, err = identityCopy(d.pixelFormat, dstW, dstH, off, buf.Raw.Data[:buf.Raw.Used], buf.Raw.Width, buf.Raw.Height, buf.Raw.Stride)
	} else {
		scratch = &frame.Frame{}
		err = convert.Convert(scratch, d.pixelFormat, dstW, dstH, off,
			buf.Raw.Format, buf.Raw.Data[:buf.Raw.Used], buf.Raw.Width, buf.Raw.Height, buf.Raw.Stride)
	}
	if release != nil {
		release()
	}
	if err != nil {
		return err
	}
	copyIntoMapped(d.cpuLiveSlot.buf.Mapped, d.cpuLiveSlot.buf.Pitch, dstH, scratch)

	if d.platform == PlatformAmlogic {
		if err := d.backend.SetCrtc(d.crtcID, d.cpuLiveSlot.fbID, d.connector.ID, d.selectedMode); err != nil {
			return err
		}
		d.hasVsync = true
		return nil
	}
	return d.flipAndWaitLocked(d.cpuLiveSlot.fbID, nil)
}

// flipAndWaitLocked issues a page flip and waits, bounded by cfg.VsyncTimeout,
// for its completion event before returning. There is no background event
// loop in this runtime, so the wait stands in for the async callback a real
// compositor would register; at most one flip is ever outstanding.
func (d *Display) flipAndWaitLocked(fbID uint32, release func()) error {
	if d.pendingValid {
		d.waitPendingLocked()
	}
	if err := d.backend.PageFlip(d.crtcID, fbID, true); err != nil {
		if release != nil {
			release()
		}
		return err
	}
	d.pendingRelease = release
	d.pendingValid = release != nil

	got, err := d.backend.WaitEvent(d.cfg.VsyncTimeout)
	if err != nil {
		return err
	}
	if got {
		d.hasVsync = true
		d.waitPendingLocked()
	}
	return nil
}

func (d *Display) waitPendingLocked() {
	if !d.pendingValid {
		return
	}
	if d.pendingRelease != nil {
		d.pendingRelease()
	}
	d.pendingRelease = nil
	d.pendingValid = false
}

// presentStubLocked draws message into the next stub slot in rotation and
// scans it out, first releasing any DMA-pinned buffer still pending.
func (d *Display) presentStubLocked(message string) error {
	d.waitPendingLocked()

	slot := &d.stubFBs[d.stubIdx]
	if err := d.drawStub(slot, message); err != nil {
		return err
	}
	if err := d.backend.PageFlip(d.crtcID, slot.fbID, true); err != nil {
		return err
	}
	if got, err := d.backend.WaitEvent(d.cfg.VsyncTimeout); err == nil && got {
		d.hasVsync = true
	}
	d.stubIdx = (d.stubIdx + 1) % len(d.stubFBs)
	return nil
}

// presentNoSignalLocked implements the blank policy: keep showing the
// NO LIVE VIDEO stub until the deadline passes, then DPMS the sink off and
// hold there until a live frame resumes it.
func (d *Display) presentNoSignalLocked() error {
	switch d.liveState {
	case Live:
		d.liveState = NoSignal
		d.noSignalDeadline = time.Now().Add(d.cfg.BlankAfter)
		return d.presentStubLocked(textrender.MsgNoLiveVideo)
	case NoSignal:
		if time.Now().After(d.noSignalDeadline) {
			d.liveState = Blanked
			if d.connector.DPMSPropertyID != 0 {
				if err := d.backend.SetDPMS(d.connector.ID, d.connector.DPMSPropertyID, false); err != nil {
					log.Warn("DPMS power-off failed", "err", err)
				}
			}
			return nil
		}
		return d.presentStubLocked(textrender.MsgNoLiveVideo)
	case Blanked:
		return nil
	case Disconnected:
		// The sink is gone; there is nothing to blank toward and no
		// frame arrived either. Stay parked until a live frame's
		// import re-probe (in presentLiveLocked) succeeds again.
		return nil
	default:
		return errs.New(errs.NotInitialized, "display.presentNoSignalLocked", nil)
	}
}

func (d *Display) resumeFromBlankLocked() {
	if d.liveState != Blanked {
		return
	}
	if d.connector.DPMSPropertyID != 0 {
		if err := d.backend.SetDPMS(d.connector.ID, d.connector.DPMSPropertyID, true); err != nil {
			log.Warn("DPMS power-on failed", "err", err)
		}
	}
}

// identityCopy centers a packed source buffer into a dst-sized canvas
// without any pixel-format conversion. Used when the capture side already
// delivers the sink's negotiated format, since internal/convert's matrix
// only covers cross-format pairs, not X->X identity.
func identityCopy(format frame.Format, dstW, dstH int, off convert.Offset, src []byte, srcW, srcH, srcStride int) (*frame.Frame, error) {
	bpp := frame.BytesPerPixel(format)
	if bpp == 0 {
		return nil, errs.New(errs.FormatUnsupported, "display.identityCopy", nil)
	}
	dstStride := dstW * bpp
	size := dstStride * dstH
	scratch := &frame.Frame{}
	if err := scratch.EnsureCapacity(size); err != nil {
		return nil, errs.New(errs.OutOfMemory, "display.identityCopy", err)
	}
	scratch.Width, scratch.Height, scratch.Stride, scratch.Format, scratch.Used = dstW, dstH, dstStride, format, size

	rowBytes := srcW * bpp
	for y := 0; y < srcH; y++ {
		dy := y + off.Y
		if dy < 0 || dy >= dstH {
			continue
		}
		dstRowOff := dy*dstStride + off.X*bpp
		srcRowOff := y * srcStride
		copy(scratch.Data[dstRowOff:dstRowOff+rowBytes], src[srcRowOff:srcRowOff+rowBytes])
	}
	return scratch, nil
}
