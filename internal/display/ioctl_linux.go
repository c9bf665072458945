//go:build linux

package display

import (
	"fmt"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
)

// DRM ioctl numbers, standard Linux encoding (_IO/_IOR/_IOW/_IOWR on 'd').
const (
	ioctlSetMaster        = 0x641e
	ioctlDropMaster       = 0x641f
	ioctlModeGetResources = 0xc04064a0
	ioctlModeGetConnector = 0xc05064a7
	ioctlModeGetEncoder   = 0xc01464a6
	ioctlModeGetCrtc      = 0xc06864a1
	ioctlModeSetCrtc      = 0xc06864a2
	ioctlModeCreateDumb   = 0xc02064b2
	ioctlModeMapDumb      = 0xc01064b3
	ioctlModeDestroyDumb  = 0xc00464b4
	ioctlModeAddFb        = 0xc01c64ae
	ioctlModeAddFb2       = 0xc06864b8
	ioctlModeRmFb         = 0xc00464af
	ioctlModePageFlip     = 0xc01864b0
	ioctlModeGetProperty  = 0xc04064aa
	ioctlModeObjGetProps  = 0xc02064b9
	ioctlModeObjSetProp   = 0xc01864ba
	ioctlPrimeFDToHandle  = 0xc00c642e

	drmModePageFlipEvent = 0x01
	drmModeConnected     = 1

	drmModeObjectConnector = 0xc0125006

	// DRM_MODE_DPMS_ON / OFF property values.
	dpmsOn  = 0
	dpmsOff = 3
)

type drmModeCardRes struct {
	FbIDPtr         uint64
	CrtcIDPtr       uint64
	ConnectorIDPtr  uint64
	EncoderIDPtr    uint64
	CountFbs        uint32
	CountCrtcs      uint32
	CountConnectors uint32
	CountEncoders   uint32
	MinWidth        uint32
	MaxWidth        uint32
	MinHeight       uint32
	MaxHeight       uint32
}

type drmModeModeInfo struct {
	Clock      uint32
	Hdisplay   uint16
	HsyncStart uint16
	HsyncEnd   uint16
	Htotal     uint16
	Hskew      uint16
	Vdisplay   uint16
	VsyncStart uint16
	VsyncEnd   uint16
	Vtotal     uint16
	Vscan      uint16
	Vrefresh   uint32
	Flags      uint32
	Type       uint32
	Name       [32]byte
}

const modeFlagInterlace = 1 << 4
const modeTypePreferred = 1 << 3

type drmModeGetConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MmWidth         uint32
	MmHeight        uint32
	Subpixel        uint32
	Pad             uint32
}

type drmModeGetEncoder struct {
	EncoderID     uint32
	EncoderType   uint32
	CrtcID        uint32
	PossibleCrtcs uint32
	PossibleClones uint32
}

type drmModeCrtc struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CrtcID           uint32
	FbID             uint32
	X                uint32
	Y                uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             drmModeModeInfo
}

type drmModeCreateDumb struct {
	Height uint32
	Width  uint32
	Bpp    uint32
	Flags  uint32
	Handle uint32
	Pitch  uint32
	Size   uint64
}

type drmModeMapDumb struct {
	Handle uint32
	Pad    uint32
	Offset uint64
}

type drmModeDestroyDumb struct {
	Handle uint32
}

type drmModeFbCmd struct {
	FbID   uint32
	Width  uint32
	Height uint32
	Pitch  uint32
	Bpp    uint32
	Depth  uint32
	Handle uint32
}

type drmModeFbCmd2 struct {
	FbID     uint32
	Width    uint32
	Height   uint32
	PixelFmt uint32
	Flags    uint32
	Handles  [4]uint32
	Pitches  [4]uint32
	Offsets  [4]uint32
	Modifier [4]uint64
}

type drmModePageFlip struct {
	CrtcID   uint32
	FbID     uint32
	Flags    uint32
	Reserved uint32
	UserData uint64
}

type drmPrimeHandle struct {
	Handle uint32
	Flags  uint32
	FD     int32
}

type drmModeObjGetProperties struct {
	PropsPtr      uint64
	PropValuesPtr uint64
	CountProps    uint32
	ObjID         uint32
	ObjType       uint32
	Pad           uint32
}

type drmModeObjSetProperty struct {
	Value    uint64
	PropID   uint32
	ObjID    uint32
	ObjType  uint32
}

type drmModeGetProperty struct {
	ValuesPtr   uint64
	EnumBlobPtr uint64
	PropID      uint32
	Flags       uint32
	Name        [32]byte
	CountValues uint32
	CountEnumBlobs uint32
}

type drmEvent struct {
	Type   uint32
	Length uint32
}

type drmEventVblank struct {
	Base        drmEvent
	UserData    uint64
	TvSec       uint32
	TvUsec      uint32
	SequenceNum uint32
	Reserved    uint32
}

// fourccFor maps display pixel formats to the DRM fourcc codes the kernel
// expects in ADDFB2/PRIME_FD_TO_HANDLE.
func fourccFor(f frame.Format) (uint32, bool) {
	switch f {
	case frame.XRGB8888:
		return 0x34325258, true // 'XR24'
	case frame.RGB888:
		return 0x34324752, true // 'RG24' (not a real fourcc, placeholder for a 24bpp packed format)
	case frame.BGR888:
		return 0x34324742, true // 'BG24'
	case frame.RGB565:
		return 0x36314752, true // 'RG16'
	default:
		return 0, false
	}
}

func bppDepthFor(f frame.Format) (bpp, depth uint32, ok bool) {
	switch f {
	case frame.XRGB8888:
		return 32, 24, true
	case frame.RGB888, frame.BGR888:
		return 24, 24, true
	case frame.RGB565:
		return 16, 16, true
	default:
		return 0, 0, false
	}
}

type ioctlBackend struct {
	f *os.File
}

func newIoctlBackend(cardPath string) (backend, error) {
	f, err := os.OpenFile(cardPath, os.O_RDWR, 0)
	if err != nil {
		return nil, errs.New(errs.NoDevice, "display.newIoctlBackend", err)
	}
	return &ioctlBackend{f: f}, nil
}

func (b *ioctlBackend) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, b.f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (b *ioctlBackend) DriverName() (string, error) {
	// DRM_IOCTL_VERSION carries the driver name in a separate two-call
	// dance identical in shape to GETRESOURCES; name length is bounded so
	// a single fixed buffer covers every real SBC GPU driver string.
	type drmVersion struct {
		VersionMajor, VersionMinor, VersionPatchLevel int32
		NameLen                                       uint64
		NamePtr                                       uint64
		DateLen                                       uint64
		DatePtr                                       uint64
		DescLen                                       uint64
		DescPtr                                       uint64
	}
	const ioctlVersion = 0xc0406400
	name := make([]byte, 64)
	v := drmVersion{NameLen: uint64(len(name)), NamePtr: uint64(uintptr(unsafe.Pointer(&name[0])))}
	if err := b.ioctl(ioctlVersion, unsafe.Pointer(&v)); err != nil {
		return "", errs.New(errs.NoDevice, "display.DriverName", err)
	}
	n := int(v.NameLen)
	if n > len(name) {
		n = len(name)
	}
	return string(name[:n]), nil
}

func (b *ioctlBackend) SetMaster() error {
	if err := b.ioctl(ioctlSetMaster, nil); err != nil {
		return errs.New(errs.DeviceBusy, "display.SetMaster", err)
	}
	return nil
}

func (b *ioctlBackend) DropMaster() error {
	if err := b.ioctl(ioctlDropMaster, nil); err != nil {
		return errs.New(errs.Init, "display.DropMaster", err)
	}
	return nil
}

func (b *ioctlBackend) GetConnectors() ([]ConnectorInfo, error) {
	var res drmModeCardRes
	if err := b.ioctl(ioctlModeGetResources, unsafe.Pointer(&res)); err != nil {
		return nil, errs.New(errs.Init, "display.GetConnectors(count)", err)
	}
	if res.CountConnectors == 0 {
		return nil, errs.New(errs.NoDevice, "display.GetConnectors", nil)
	}
	connIDs := make([]uint32, res.CountConnectors)
	crtcIDs := make([]uint32, res.CountCrtcs)
	encIDs := make([]uint32, res.CountEncoders)
	fbIDs := make([]uint32, res.CountFbs)
	res2 := drmModeCardRes{
		ConnectorIDPtr:  ptrOf(connIDs),
		CrtcIDPtr:       ptrOf(crtcIDs),
		EncoderIDPtr:    ptrOf(encIDs),
		FbIDPtr:         ptrOf(fbIDs),
		CountConnectors: res.CountConnectors,
		CountCrtcs:      res.CountCrtcs,
		CountEncoders:   res.CountEncoders,
		CountFbs:        res.CountFbs,
	}
	if err := b.ioctl(ioctlModeGetResources, unsafe.Pointer(&res2)); err != nil {
		return nil, errs.New(errs.Init, "display.GetConnectors(fill)", err)
	}

	out := make([]ConnectorInfo, 0, len(connIDs))
	for _, id := range connIDs {
		ci, err := b.getConnector(id)
		if err != nil {
			return nil, err
		}
		out = append(out, ci)
	}
	return out, nil
}

func (b *ioctlBackend) getConnector(id uint32) (ConnectorInfo, error) {
	var c drmModeGetConnector
	c.ConnectorID = id
	if err := b.ioctl(ioctlModeGetConnector, unsafe.Pointer(&c)); err != nil {
		return ConnectorInfo{}, errs.New(errs.Init, "display.getConnector(count)", err)
	}
	modes := make([]drmModeModeInfo, c.CountModes)
	encoders := make([]uint32, c.CountEncoders)
	c2 := drmModeGetConnector{
		ConnectorID:   id,
		CountModes:    c.CountModes,
		CountEncoders: c.CountEncoders,
	}
	if c.CountModes > 0 {
		c2.ModesPtr = ptrOf(modes)
	}
	if c.CountEncoders > 0 {
		c2.EncodersPtr = ptrOf(encoders)
	}
	if err := b.ioctl(ioctlModeGetConnector, unsafe.Pointer(&c2)); err != nil {
		return ConnectorInfo{}, errs.New(errs.Init, "display.getConnector(fill)", err)
	}

	out := ConnectorInfo{
		ID:         id,
		Type:       c2.ConnectorType,
		TypeID:     c2.ConnectorTypeID,
		Connected:  c2.Connection == drmModeConnected,
		EncoderIDs: encoders,
		Modes:      make([]ModeInfo, 0, len(modes)),
	}
	for _, m := range modes {
		out.Modes = append(out.Modes, ModeInfo{
			Width:      m.Hdisplay,
			Height:     m.Vdisplay,
			Refresh:    m.Vrefresh,
			Interlaced: m.Flags&modeFlagInterlace != 0,
			Preferred:  m.Type&modeTypePreferred != 0,
			raw:        m,
		})
	}
	propID, err := b.dpmsPropertyID(id)
	if err == nil {
		out.DPMSPropertyID = propID
	}
	return out, nil
}

// dpmsPropertyID looks up the connector's "DPMS" property id by name, 0 if
// absent (some embedded DRM drivers don't expose it on DSI/composite
// connectors).
func (b *ioctlBackend) dpmsPropertyID(connectorID uint32) (uint32, error) {
	var op drmModeObjGetProperties
	op.ObjID = connectorID
	op.ObjType = drmModeObjectConnector
	if err := b.ioctl(ioctlModeObjGetProps, unsafe.Pointer(&op)); err != nil {
		return 0, err
	}
	if op.CountProps == 0 {
		return 0, fmt.Errorf("no properties")
	}
	propIDs := make([]uint32, op.CountProps)
	values := make([]uint64, op.CountProps)
	op2 := drmModeObjGetProperties{
		ObjID:         connectorID,
		ObjType:       drmModeObjectConnector,
		CountProps:    op.CountProps,
		PropsPtr:      ptrOf(propIDs),
		PropValuesPtr: ptrOf(values),
	}
	if err := b.ioctl(ioctlModeObjGetProps, unsafe.Pointer(&op2)); err != nil {
		return 0, err
	}
	for _, pid := range propIDs {
		var gp drmModeGetProperty
		gp.PropID = pid
		if err := b.ioctl(ioctlModeGetProperty, unsafe.Pointer(&gp)); err != nil {
			continue
		}
		name := cString(gp.Name[:])
		if name == "DPMS" {
			return pid, nil
		}
	}
	return 0, fmt.Errorf("DPMS property not found")
}

func (b *ioctlBackend) GetEncoders() ([]EncoderInfo, error) {
	var res drmModeCardRes
	if err := b.ioctl(ioctlModeGetResources, unsafe.Pointer(&res)); err != nil {
		return nil, errs.New(errs.Init, "display.GetEncoders(count)", err)
	}
	encIDs := make([]uint32, res.CountEncoders)
	if res.CountEncoders > 0 {
		res2 := drmModeCardRes{EncoderIDPtr: ptrOf(encIDs), CountEncoders: res.CountEncoders}
		if err := b.ioctl(ioctlModeGetResources, unsafe.Pointer(&res2)); err != nil {
			return nil, errs.New(errs.Init, "display.GetEncoders(fill)", err)
		}
	}
	var crtcIDs []uint32
	{
		res3 := drmModeCardRes{}
		_ = b.ioctl(ioctlModeGetResources, unsafe.Pointer(&res3))
		crtcIDs = make([]uint32, res3.CountCrtcs)
		if res3.CountCrtcs > 0 {
			res4 := drmModeCardRes{CrtcIDPtr: ptrOf(crtcIDs), CountCrtcs: res3.CountCrtcs}
			_ = b.ioctl(ioctlModeGetResources, unsafe.Pointer(&res4))
		}
	}

	out := make([]EncoderInfo, 0, len(encIDs))
	for _, id := range encIDs {
		var e drmModeGetEncoder
		e.EncoderID = id
		if err := b.ioctl(ioctlModeGetEncoder, unsafe.Pointer(&e)); err != nil {
			return nil, errs.New(errs.Init, "display.GetEncoders(get)", err)
		}
		var possible []uint32
		for i, cid := range crtcIDs {
			if e.PossibleCrtcs&(1<<uint(i)) != 0 {
				possible = append(possible, cid)
			}
		}
		out = append(out, EncoderInfo{ID: id, PossibleCrtcs: possible})
	}
	return out, nil
}

func (b *ioctlBackend) GetCrtcIDs() ([]uint32, error) {
	var res drmModeCardRes
	if err := b.ioctl(ioctlModeGetResources, unsafe.Pointer(&res)); err != nil {
		return nil, errs.New(errs.Init, "display.GetCrtcIDs(count)", err)
	}
	ids := make([]uint32, res.CountCrtcs)
	if res.CountCrtcs > 0 {
		res2 := drmModeCardRes{CrtcIDPtr: ptrOf(ids), CountCrtcs: res.CountCrtcs}
		if err := b.ioctl(ioctlModeGetResources, unsafe.Pointer(&res2)); err != nil {
			return nil, errs.New(errs.Init, "display.GetCrtcIDs(fill)", err)
		}
	}
	return ids, nil
}

func (b *ioctlBackend) GetCrtc(crtcID uint32) (CrtcState, error) {
	var c drmModeCrtc
	c.CrtcID = crtcID
	if err := b.ioctl(ioctlModeGetCrtc, unsafe.Pointer(&c)); err != nil {
		return CrtcState{}, errs.New(errs.Init, "display.GetCrtc", err)
	}
	return CrtcState{
		CrtcID:    c.CrtcID,
		FbID:      c.FbID,
		X:         c.X,
		Y:         c.Y,
		ModeValid: c.ModeValid != 0,
		Mode:      c.Mode,
	}, nil
}

func (b *ioctlBackend) SetCrtc(crtcID, fbID, connectorID uint32, mode ModeInfo) error {
	raw, _ := mode.raw.(drmModeModeInfo)
	connectors := []uint32{connectorID}
	crtc := drmModeCrtc{
		CrtcID:          crtcID,
		FbID:            fbID,
		SetConnectorsPtr: ptrOf(connectors),
		CountConnectors: 1,
		ModeValid:       1,
		Mode:            raw,
	}
	err := b.ioctl(ioctlModeSetCrtc, unsafe.Pointer(&crtc))
	if err == unix.EBUSY {
		// ustreamer's rk-mpp plugin retries once on EBUSY before giving
		// up; a concurrent modeset (or our own in-flight flip) is the
		// common transient cause.
		err = b.ioctl(ioctlModeSetCrtc, unsafe.Pointer(&crtc))
	}
	if err != nil {
		return errs.New(errs.DeviceBusy, "display.SetCrtc", err)
	}
	return nil
}

func (b *ioctlBackend) RestoreCrtc(saved CrtcState) error {
	raw, _ := saved.Mode.(drmModeModeInfo)
	crtc := drmModeCrtc{
		CrtcID:    saved.CrtcID,
		FbID:      saved.FbID,
		X:         saved.X,
		Y:         saved.Y,
		ModeValid: boolToU32(saved.ModeValid),
		Mode:      raw,
	}
	if err := b.ioctl(ioctlModeSetCrtc, unsafe.Pointer(&crtc)); err != nil {
		return errs.New(errs.Init, "display.RestoreCrtc", err)
	}
	return nil
}

func (b *ioctlBackend) CreateDumb(width, height, bpp uint32) (DumbBuffer, error) {
	d := drmModeCreateDumb{Width: width, Height: height, Bpp: bpp}
	if err := b.ioctl(ioctlModeCreateDumb, unsafe.Pointer(&d)); err != nil {
		return DumbBuffer{}, errs.New(errs.OutOfMemory, "display.CreateDumb", err)
	}
	return DumbBuffer{Handle: d.Handle, Pitch: d.Pitch, Size: d.Size}, nil
}

func (b *ioctlBackend) MapDumb(buf *DumbBuffer) error {
	m := drmModeMapDumb{Handle: buf.Handle}
	if err := b.ioctl(ioctlModeMapDumb, unsafe.Pointer(&m)); err != nil {
		return errs.New(errs.Init, "display.MapDumb", err)
	}
	data, err := unix.Mmap(int(b.f.Fd()), int64(m.Offset), int(buf.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return errs.New(errs.Init, "display.MapDumb(mmap)", err)
	}
	buf.Mapped = data
	return nil
}

func (b *ioctlBackend) DestroyDumb(buf DumbBuffer) error {
	if buf.Mapped != nil {
		_ = unix.Munmap(buf.Mapped)
	}
	d := drmModeDestroyDumb{Handle: buf.Handle}
	if err := b.ioctl(ioctlModeDestroyDumb, unsafe.Pointer(&d)); err != nil {
		return errs.New(errs.Init, "display.DestroyDumb", err)
	}
	return nil
}

func (b *ioctlBackend) AddFB(buf DumbBuffer, width, height uint32, format frame.Format) (uint32, error) {
	bpp, depth, ok := bppDepthFor(format)
	if !ok {
		return 0, errs.New(errs.FormatUnsupported, "display.AddFB", nil)
	}
	fb := drmModeFbCmd{Width: width, Height: height, Pitch: buf.Pitch, Bpp: bpp, Depth: depth, Handle: buf.Handle}
	if err := b.ioctl(ioctlModeAddFb, unsafe.Pointer(&fb)); err != nil {
		return 0, errs.New(errs.Init, "display.AddFB", err)
	}
	return fb.FbID, nil
}

func (b *ioctlBackend) ImportPrimeFD(dmaFD int, width, height uint32, format frame.Format) (uint32, error) {
	fourcc, ok := fourccFor(format)
	if !ok {
		return 0, errs.New(errs.FormatUnsupported, "display.ImportPrimeFD", nil)
	}
	h := drmPrimeHandle{FD: int32(dmaFD)}
	if err := b.ioctl(ioctlPrimeFDToHandle, unsafe.Pointer(&h)); err != nil {
		return 0, errs.New(importErrKind(err), "display.ImportPrimeFD(handle)", err)
	}
	fb2 := drmModeFbCmd2{Width: width, Height: height, PixelFmt: fourcc}
	fb2.Handles[0] = h.Handle
	fb2.Pitches[0] = width * bytesPerPixelFor(format)
	if err := b.ioctl(ioctlModeAddFb2, unsafe.Pointer(&fb2)); err != nil {
		return 0, errs.New(importErrKind(err), "display.ImportPrimeFD(addfb2)", err)
	}
	return fb2.FbID, nil
}

// importErrKind classifies an ImportPrimeFD ioctl failure: ENODEV/ENXIO mean
// the DRM device node itself is gone (card unplugged or disabled), which the
// display runtime treats as Disconnected rather than an ordinary import
// failure worth falling back to a CPU scan-out for.
func importErrKind(err error) errs.Kind {
	if errno, ok := err.(unix.Errno); ok && (errno == unix.ENODEV || errno == unix.ENXIO) {
		return errs.NoDevice
	}
	return errs.Init
}

func bytesPerPixelFor(f frame.Format) uint32 {
	if bpp := frame.BytesPerPixel(f); bpp > 0 {
		return uint32(bpp)
	}
	return 4
}

func (b *ioctlBackend) RemoveFB(fbID uint32) error {
	id := fbID
	if err := b.ioctl(ioctlModeRmFb, unsafe.Pointer(&id)); err != nil {
		return errs.New(errs.Init, "display.RemoveFB", err)
	}
	return nil
}

func (b *ioctlBackend) PageFlip(crtcID, fbID uint32, withEvent bool) error {
	flags := uint32(0)
	if withEvent {
		flags = drmModePageFlipEvent
	}
	pf := drmModePageFlip{CrtcID: crtcID, FbID: fbID, Flags: flags}
	if err := b.ioctl(ioctlModePageFlip, unsafe.Pointer(&pf)); err != nil {
		return errs.New(errs.DeviceBusy, "display.PageFlip", err)
	}
	return nil
}

func (b *ioctlBackend) WaitEvent(timeout time.Duration) (bool, error) {
	fdset := []unix.PollFd{{Fd: int32(b.f.Fd()), Events: unix.POLLIN}}
	n, err := unix.Poll(fdset, int(timeout.Milliseconds()))
	if err != nil {
		return false, errs.New(errs.Init, "display.WaitEvent(poll)", err)
	}
	if n == 0 {
		return false, nil
	}
	buf := make([]byte, 1024)
	nr, err := unix.Read(int(b.f.Fd()), buf)
	if err != nil || nr < int(unsafe.Sizeof(drmEvent{})) {
		return false, nil
	}
	return true, nil
}

func (b *ioctlBackend) SetDPMS(connectorID, propertyID uint32, on bool) error {
	if propertyID == 0 {
		return errs.New(errs.FormatUnsupported, "display.SetDPMS", nil)
	}
	value := uint64(dpmsOff)
	if on {
		value = dpmsOn
	}
	p := drmModeObjSetProperty{Value: value, PropID: propertyID, ObjID: connectorID, ObjType: drmModeObjectConnector}
	if err := b.ioctl(ioctlModeObjSetProp, unsafe.Pointer(&p)); err != nil {
		return errs.New(errs.Init, "display.SetDPMS", err)
	}
	return nil
}

func (b *ioctlBackend) Close() error {
	return b.f.Close()
}

func ptrOf[T any](s []T) uint64 {
	if len(s) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&s[0])))
}

func boolToU32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
