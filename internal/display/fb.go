package display

import (
	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
	"github.com/lanternops/streamnode/internal/textrender"
)

// stubFBCount is the size of the rotating stub framebuffer pool. Rotating
// rather than redrawing a single buffer avoids tearing a buffer the CRTC may
// still be scanning out from the previous flip.
const stubFBCount = 4

// allocateStubFramebuffers builds the stub pool at the selected mode's
// geometry, negotiating a pixel format the backend will actually accept for
// AddFB: the configured preferred format first, then XRGB8888, then RGB565
// (§4.F's format fallback chain). The format that wins is also the format
// every subsequent live frame gets converted into.
func (d *Display) allocateStubFramebuffers() error {
	w, h := uint32(d.selectedMode.Width), uint32(d.selectedMode.Height)

	candidates := []frame.Format{d.cfg.PreferredFormat, frame.XRGB8888, frame.RGB565}
	var chosen frame.Format
	var firstErr error
	var first stubSlot
	for _, f := range candidates {
		if f == "" || f == chosen {
			continue
		}
		buf, fbID, err := d.createFramebufferFor(w, h, f)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		chosen = f
		first = stubSlot{buf: buf, fbID: fbID}
		break
	}
	if chosen == "" {
		return errs.New(errs.Init, "display.allocateStubFramebuffers", firstErr)
	}
	d.pixelFormat = chosen
	d.stubFBs = append(d.stubFBs[:0], first)

	for i := 1; i < stubFBCount; i++ {
		buf, fbID, err := d.createFramebufferFor(w, h, chosen)
		if err != nil {
			d.releaseStubFramebuffers()
			return errs.New(errs.Init, "display.allocateStubFramebuffers", err)
		}
		d.stubFBs = append(d.stubFBs, stubSlot{buf: buf, fbID: fbID})
	}
	d.stubIdx = 0
	return nil
}

// createFramebufferFor allocates, maps, and binds one dumb buffer; on any
// failure after CreateDumb it tears the buffer back down before returning.
func (d *Display) createFramebufferFor(w, h uint32, format frame.Format) (DumbBuffer, uint32, error) {
	bpp := frame.BytesPerPixel(format) * 8
	buf, err := d.backend.CreateDumb(w, h, uint32(bpp))
	if err != nil {
		return DumbBuffer{}, 0, err
	}
	if err := d.backend.MapDumb(&buf); err != nil {
		_ = d.backend.DestroyDumb(buf)
		return DumbBuffer{}, 0, err
	}
	fbID, err := d.backend.AddFB(buf, w, h, format)
	if err != nil {
		_ = d.backend.DestroyDumb(buf)
		return DumbBuffer{}, 0, err
	}
	return buf, fbID, nil
}

func (d *Display) releaseStubFramebuffers() {
	for _, s := range d.stubFBs {
		_ = d.backend.RemoveFB(s.fbID)
		_ = d.backend.DestroyDumb(s.buf)
	}
	d.stubFBs = nil
}

// drawStub renders message at the selected mode's geometry and copies it
// into slot's mapped buffer, honoring the buffer's pitch (which may exceed
// width*bytesPerPixel once a driver pads scanout rows).
func (d *Display) drawStub(slot *stubSlot, message string) error {
	var scratch frame.Frame
	if err := textrender.Render(&scratch, d.pixelFormat, int(d.selectedMode.Width), int(d.selectedMode.Height), message); err != nil {
		return err
	}
	copyIntoMapped(slot.buf.Mapped, slot.buf.Pitch, int(d.selectedMode.Height), &scratch)
	return nil
}

// copyIntoMapped blits a packed-format scratch frame's rows into a mapped
// dumb buffer that may have a wider pitch than the source stride.
func copyIntoMapped(mapped []byte, pitch uint32, height int, src *frame.Frame) {
	rowBytes := src.Stride
	p := int(pitch)
	for y := 0; y < height; y++ {
		srcRow := src.Data[y*rowBytes : y*rowBytes+rowBytes]
		dstOff := y * p
		copy(mapped[dstOff:dstOff+rowBytes], srcRow)
	}
}

// ensureCPULiveSlot lazily allocates the owned conversion-target dumb buffer
// used by the amlogic scan-out path and by the DMA-import fallback on other
// platforms.
func (d *Display) ensureCPULiveSlot() error {
	if d.cpuLiveSlot != nil {
		return nil
	}
	w, h := uint32(d.selectedMode.Width), uint32(d.selectedMode.Height)
	buf, fbID, err := d.createFramebufferFor(w, h, d.pixelFormat)
	if err != nil {
		return err
	}
	d.cpuLiveSlot = &stubSlot{buf: buf, fbID: fbID}
	return nil
}

func (d *Display) releaseCPULiveSlot() {
	if d.cpuLiveSlot == nil {
		return
	}
	_ = d.backend.RemoveFB(d.cpuLiveSlot.fbID)
	_ = d.backend.DestroyDumb(d.cpuLiveSlot.buf)
	d.cpuLiveSlot = nil
}

func (d *Display) releaseDMAFramebuffers() {
	for idx, slot := range d.dmaFBs {
		_ = d.backend.RemoveFB(slot.fbID)
		delete(d.dmaFBs, idx)
	}
}
