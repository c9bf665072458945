//go:build !linux

package display

import (
	"time"

	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
)

// newIoctlBackend has no non-Linux implementation: DRM/KMS is a Linux
// kernel interface. This keeps cross-platform builds (and `go vet ./...`
// from a non-Linux workstation) compiling without pretending a stub
// backend can drive real hardware.
func newIoctlBackend(cardPath string) (backend, error) {
	return noopBackend{}, nil
}

type noopBackend struct{}

func (noopBackend) DriverName() (string, error) { return "", errs.New(errs.NoDevice, "display", nil) }
func (noopBackend) SetMaster() error            { return errs.New(errs.NoDevice, "display", nil) }
func (noopBackend) DropMaster() error           { return nil }
func (noopBackend) GetConnectors() ([]ConnectorInfo, error) {
	return nil, errs.New(errs.NoDevice, "display", nil)
}
func (noopBackend) GetEncoders() ([]EncoderInfo, error) { return nil, errs.New(errs.NoDevice, "display", nil) }
func (noopBackend) GetCrtcIDs() ([]uint32, error)       { return nil, errs.New(errs.NoDevice, "display", nil) }
func (noopBackend) GetCrtc(uint32) (CrtcState, error)   { return CrtcState{}, errs.New(errs.NoDevice, "display", nil) }
func (noopBackend) SetCrtc(uint32, uint32, uint32, ModeInfo) error {
	return errs.New(errs.NoDevice, "display", nil)
}
func (noopBackend) RestoreCrtc(CrtcState) error { return errs.New(errs.NoDevice, "display", nil) }
func (noopBackend) CreateDumb(uint32, uint32, uint32) (DumbBuffer, error) {
	return DumbBuffer{}, errs.New(errs.NoDevice, "display", nil)
}
func (noopBackend) MapDumb(*DumbBuffer) error   { return errs.New(errs.NoDevice, "display", nil) }
func (noopBackend) DestroyDumb(DumbBuffer) error { return nil }
func (noopBackend) AddFB(DumbBuffer, uint32, uint32, frame.Format) (uint32, error) {
	return 0, errs.New(errs.NoDevice, "display", nil)
}
func (noopBackend) ImportPrimeFD(int, uint32, uint32, frame.Format) (uint32, error) {
	return 0, errs.New(errs.NoDevice, "display", nil)
}
func (noopBackend) RemoveFB(uint32) error { return nil }
func (noopBackend) PageFlip(uint32, uint32, bool) error {
	return errs.New(errs.NoDevice, "display", nil)
}
func (noopBackend) WaitEvent(time.Duration) (bool, error) { return false, errs.New(errs.NoDevice, "display", nil) }
func (noopBackend) SetDPMS(uint32, uint32, bool) error    { return errs.New(errs.NoDevice, "display", nil) }
func (noopBackend) Close() error                          { return nil }
