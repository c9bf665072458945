package capture

import (
	"time"

	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
)

// fakeDevice is a scriptable device used by every test in this package,
// mirroring internal/display's fakeBackend seam so Open/Poll/Release/Close
// are exercised without a real V4L2 node.
type fakeDevice struct {
	openErr error

	negotiatedW, negotiatedH uint32
	negotiatedFormat         frame.Format
	setFormatErr             error

	negotiatedHz    uint32
	setFrameRateErr error

	bufferCount      uint32
	requestBuffersErr error

	bufLen        uint32
	queryBufErr   error
	mmapErr       error
	mmapData      map[uint32][]byte

	dmaFd         int
	exportErr     error

	queueErr   error
	queuedIdx  []uint32

	dequeueSeq    []dequeueResult
	dequeueIdx    int

	streamOnErr  bool
	streamOffErr bool

	readableSeq []bool
	readableErr error
	readableIdx int

	closed bool
}

type dequeueResult struct {
	index     uint32
	bytesUsed uint32
	err       error
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		negotiatedW:      1280,
		negotiatedH:      720,
		negotiatedFormat: frame.YUYV,
		negotiatedHz:     30,
		bufferCount:      4,
		bufLen:           1280 * 720 * 2,
		dmaFd:            -1,
		mmapData:         make(map[uint32][]byte),
	}
}

func (d *fakeDevice) Open(path string) error { return d.openErr }

func (d *fakeDevice) SetFormat(width, height uint32, format frame.Format) (uint32, uint32, frame.Format, error) {
	if d.setFormatErr != nil {
		return 0, 0, "", d.setFormatErr
	}
	return d.negotiatedW, d.negotiatedH, d.negotiatedFormat, nil
}

func (d *fakeDevice) SetFrameRate(hz uint32) (uint32, error) {
	if d.setFrameRateErr != nil {
		return 0, d.setFrameRateErr
	}
	return d.negotiatedHz, nil
}

func (d *fakeDevice) RequestBuffers(count uint32) (uint32, error) {
	if d.requestBuffersErr != nil {
		return 0, d.requestBuffersErr
	}
	return d.bufferCount, nil
}

func (d *fakeDevice) QueryBuffer(index uint32) (uint32, uint32, error) {
	if d.queryBufErr != nil {
		return 0, 0, d.queryBufErr
	}
	return index * d.bufLen, d.bufLen, nil
}

func (d *fakeDevice) Mmap(offset, length uint32) ([]byte, error) {
	if d.mmapErr != nil {
		return nil, d.mmapErr
	}
	b := make([]byte, length)
	d.mmapData[offset] = b
	return b, nil
}

func (d *fakeDevice) Munmap(buf []byte) error { return nil }

func (d *fakeDevice) ExportDMABuf(index uint32) (int, error) {
	if d.exportErr != nil {
		return -1, d.exportErr
	}
	return d.dmaFd, nil
}

func (d *fakeDevice) QueueBuffer(index uint32) error {
	if d.queueErr != nil {
		return d.queueErr
	}
	d.queuedIdx = append(d.queuedIdx, index)
	return nil
}

func (d *fakeDevice) DequeueBuffer() (uint32, uint32, error) {
	if d.dequeueIdx >= len(d.dequeueSeq) {
		return 0, 0, errs.New(errs.Timeout, "fake.DequeueBuffer", nil)
	}
	r := d.dequeueSeq[d.dequeueIdx]
	d.dequeueIdx++
	if r.err != nil {
		return 0, 0, r.err
	}
	return r.index, r.bytesUsed, nil
}

func (d *fakeDevice) StreamOn() error {
	if d.streamOnErr {
		return errs.New(errs.Init, "fake.StreamOn", nil)
	}
	return nil
}

func (d *fakeDevice) StreamOff() error {
	if d.streamOffErr {
		return errs.New(errs.Init, "fake.StreamOff", nil)
	}
	return nil
}

func (d *fakeDevice) WaitReadable(timeout time.Duration) (bool, error) {
	if d.readableErr != nil {
		return false, d.readableErr
	}
	if d.readableIdx >= len(d.readableSeq) {
		return false, nil
	}
	ready := d.readableSeq[d.readableIdx]
	d.readableIdx++
	return ready, nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

func newTestCapture(dev *fakeDevice) *Capture {
	c := New()
	c.newDevice = func() device { return dev }
	return c
}
