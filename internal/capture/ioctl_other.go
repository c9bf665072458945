//go:build !linux

package capture

import (
	"time"

	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
)

// newV4L2Device has no non-Linux implementation: V4L2 is a Linux kernel
// interface. This keeps cross-platform builds compiling without pretending
// a stub device can drive real hardware.
func newV4L2Device() device { return noopDevice{} }

type noopDevice struct{}

func (noopDevice) Open(string) error { return errs.New(errs.NoDevice, "capture", nil) }
func (noopDevice) SetFormat(uint32, uint32, frame.Format) (uint32, uint32, frame.Format, error) {
	return 0, 0, "", errs.New(errs.NoDevice, "capture", nil)
}
func (noopDevice) SetFrameRate(uint32) (uint32, error) { return 0, errs.New(errs.NoDevice, "capture", nil) }
func (noopDevice) RequestBuffers(uint32) (uint32, error) {
	return 0, errs.New(errs.NoDevice, "capture", nil)
}
func (noopDevice) QueryBuffer(uint32) (uint32, uint32, error) {
	return 0, 0, errs.New(errs.NoDevice, "capture", nil)
}
func (noopDevice) Mmap(uint32, uint32) ([]byte, error) {
	return nil, errs.New(errs.NoDevice, "capture", nil)
}
func (noopDevice) Munmap([]byte) error        { return nil }
func (noopDevice) ExportDMABuf(uint32) (int, error) { return -1, nil }
func (noopDevice) QueueBuffer(uint32) error   { return errs.New(errs.NoDevice, "capture", nil) }
func (noopDevice) DequeueBuffer() (uint32, uint32, error) {
	return 0, 0, errs.New(errs.NoDevice, "capture", nil)
}
func (noopDevice) StreamOn() error  { return errs.New(errs.NoDevice, "capture", nil) }
func (noopDevice) StreamOff() error { return nil }
func (noopDevice) WaitReadable(time.Duration) (bool, error) {
	return false, errs.New(errs.NoDevice, "capture", nil)
}
func (noopDevice) Close() error { return nil }
