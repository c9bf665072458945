package capture

import (
	"sync"
	"time"

	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
	"github.com/lanternops/streamnode/internal/logging"
)

var log = logging.L("capture")

// Config describes the requested capture geometry. The driver may negotiate
// a different width/height/format/hz than requested; the negotiated values
// are reported in the CaptureState returned from Open.
type Config struct {
	DevicePath      string
	Width, Height   uint32
	RefreshHz       uint32
	PreferredFormat frame.Format
	BufferCount     uint32
	PollTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.DevicePath == "" {
		c.DevicePath = "/dev/video0"
	}
	if c.PreferredFormat == "" {
		c.PreferredFormat = frame.YUYV
	}
	if c.BufferCount == 0 {
		c.BufferCount = 4
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 200 * time.Millisecond
	}
	return c
}

type bufSlot struct {
	raw    *frame.Frame
	mapped []byte
	queued bool
}

// Capture drives one V4L2 video capture device through open -> poll* ->
// release* -> close (§6's consumed "capture source" interface).
type Capture struct {
	mu    sync.Mutex
	cfg   Config
	dev   device
	open  bool
	state CaptureState
	bufs  []bufSlot

	newDevice func() device
}

// New constructs a closed Capture. Open must be called before use.
func New() *Capture {
	return &Capture{newDevice: newV4L2Device}
}

// Open negotiates format, requests and maps the buffer pool, exports DMA
// handles where the driver supports it, and starts streaming.
func (c *Capture) Open(cfg Config) (CaptureState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		return CaptureState{}, errs.New(errs.Init, "capture.Open", nil)
	}
	cfg = cfg.withDefaults()
	c.cfg = cfg

	dev := c.newDevice()
	if err := dev.Open(cfg.DevicePath); err != nil {
		return CaptureState{}, err
	}

	w, h, format, err := dev.SetFormat(cfg.Width, cfg.Height, cfg.PreferredFormat)
	if err != nil {
		dev.Close()
		return CaptureState{}, err
	}
	hz, err := dev.SetFrameRate(cfg.RefreshHz)
	if err != nil {
		log.Warn("frame rate negotiation failed, continuing at driver default", "err", err)
		hz = cfg.RefreshHz
	}

	count, err := dev.RequestBuffers(cfg.BufferCount)
	if err != nil {
		dev.Close()
		return CaptureState{}, err
	}
	if count == 0 {
		dev.Close()
		return CaptureState{}, errs.New(errs.NoDevice, "capture.Open(no buffers)", nil)
	}

	bufs := make([]bufSlot, count)
	descriptors := make([]BufferDescriptor, count)
	stride := strideFor(format, int(w))
	for i := uint32(0); i < count; i++ {
		offset, length, err := dev.QueryBuffer(i)
		if err != nil {
			teardownBufs(dev, bufs[:i])
			dev.Close()
			return CaptureState{}, err
		}
		mapped, err := dev.Mmap(offset, length)
		if err != nil {
			teardownBufs(dev, bufs[:i])
			dev.Close()
			return CaptureState{}, err
		}
		dmaFd, err := dev.ExportDMABuf(i)
		if err != nil {
			dmaFd = -1
		}

		raw := &frame.Frame{Width: int(w), Height: int(h), Stride: stride, Format: format}
		bufs[i] = bufSlot{raw: raw, mapped: mapped}
		descriptors[i] = BufferDescriptor{Index: int(i), DMAFd: dmaFd, Raw: raw}

		if err := dev.QueueBuffer(i); err != nil {
			teardownBufs(dev, bufs[:i+1])
			dev.Close()
			return CaptureState{}, err
		}
		bufs[i].queued = true
	}

	if err := dev.StreamOn(); err != nil {
		teardownBufs(dev, bufs)
		dev.Close()
		return CaptureState{}, err
	}

	c.dev = dev
	c.bufs = bufs
	c.state = CaptureState{Width: w, Height: h, Hz: hz, Format: format, NBufs: int(count), Buffers: descriptors}
	c.open = true
	log.Info("capture opened", "width", w, "height", h, "hz", hz, "format", format, "n_bufs", count)
	return c.state, nil
}

// strideFor computes the dominant-plane stride for a capture format; for
// the packed formats this is width*bytesPerPixel, for planar formats it is
// the luma plane's stride (width itself).
func strideFor(f frame.Format, width int) int {
	if bpp := frame.BytesPerPixel(f); bpp > 0 {
		return width * bpp
	}
	return width
}

func teardownBufs(dev device, bufs []bufSlot) {
	for _, b := range bufs {
		if b.mapped != nil {
			_ = dev.Munmap(b.mapped)
		}
	}
}

// Poll waits up to the configured PollTimeout for a filled buffer. A nil,
// nil return means no frame arrived this tick (the caller should treat that
// like §6's `None`). The returned CaptureBuffer's Raw frame is reused on
// every Poll for the same Index; Release must be called once the caller is
// done with it so the device can refill it.
func (c *Capture) Poll() (*frame.CaptureBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, errs.New(errs.NotInitialized, "capture.Poll", nil)
	}

	ready, err := c.dev.WaitReadable(c.cfg.PollTimeout)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, nil
	}

	index, bytesUsed, err := c.dev.DequeueBuffer()
	if err != nil {
		if k, ok := errs.KindOf(err); ok && k == errs.Timeout {
			return nil, nil
		}
		return nil, err
	}
	if int(index) >= len(c.bufs) {
		return nil, errs.New(errs.BufferOverflow, "capture.Poll", nil)
	}

	slot := &c.bufs[index]
	slot.queued = false
	slot.raw.Data = slot.mapped
	slot.raw.Used = int(bytesUsed)
	slot.raw.Allocated = len(slot.mapped)
	slot.raw.GrabTS = time.Now()

	return &frame.CaptureBuffer{
		Index: int(index),
		Raw:   slot.raw,
		DMAFd: c.state.Buffers[index].DMAFd,
	}, nil
}

// Release returns a previously polled buffer to the device's incoming
// queue. Safe to call once per Poll result; a second call on an
// already-queued index is a caller bug and returns InvalidParam.
func (c *Capture) Release(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return errs.New(errs.NotInitialized, "capture.Release", nil)
	}
	if index < 0 || index >= len(c.bufs) {
		return errs.New(errs.InvalidParam, "capture.Release", nil)
	}
	if c.bufs[index].queued {
		return errs.New(errs.InvalidParam, "capture.Release", nil)
	}
	if err := c.dev.QueueBuffer(uint32(index)); err != nil {
		return err
	}
	c.bufs[index].queued = true
	return nil
}

// Close stops streaming, unmaps every buffer, and closes the device.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return errs.New(errs.NotInitialized, "capture.Close", nil)
	}

	var firstErr error
	if err := c.dev.StreamOff(); err != nil && firstErr == nil {
		firstErr = err
	}
	teardownBufs(c.dev, c.bufs)
	if err := c.dev.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	c.open = false
	c.bufs = nil
	c.state = CaptureState{}
	log.Info("capture closed")
	return firstErr
}
