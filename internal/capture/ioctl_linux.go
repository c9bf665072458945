//go:build linux

package capture

import (
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
)

// V4L2 ioctl request numbers, encoded the same way go4vl's manual example
// (other_examples) derives them: _IOWR/_IOW('V', nr, size) per
// <linux/videodev2.h>.
const (
	bufTypeVideoCapture uint32 = 1
	memoryMMAP          uint32 = 1

	fieldNone uint32 = 1
)

func ioEnc(mode, typ, nr, size uintptr) uintptr {
	const (
		numberBits = 8
		typeBits   = 8
		sizeBits   = 14
		numberPos  = 0
		typePos    = numberPos + numberBits
		sizePos    = typePos + typeBits
		opPos      = sizePos + sizeBits
	)
	return (mode << opPos) | (typ << typePos) | (nr << numberPos) | (size << sizePos)
}

func ioR(typ, nr, size uintptr) uintptr  { return ioEnc(2, typ, nr, size) }
func ioW(typ, nr, size uintptr) uintptr  { return ioEnc(1, typ, nr, size) }
func ioRW(typ, nr, size uintptr) uintptr { return ioEnc(3, typ, nr, size) }

var (
	vidiocSFmt     = ioRW('V', 5, unsafe.Sizeof(v4l2Format{}))
	vidiocReqBufs  = ioRW('V', 8, unsafe.Sizeof(v4l2RequestBuffers{}))
	vidiocQueryBuf = ioRW('V', 9, unsafe.Sizeof(v4l2Buffer{}))
	vidiocQBuf     = ioRW('V', 15, unsafe.Sizeof(v4l2Buffer{}))
	vidiocExpBuf   = ioRW('V', 16, unsafe.Sizeof(v4l2ExportBuffer{}))
	vidiocDQBuf    = ioRW('V', 17, unsafe.Sizeof(v4l2Buffer{}))
	vidiocStreamOn = ioW('V', 18, unsafe.Sizeof(int32(0)))
	vidiocStreamOff = ioW('V', 19, unsafe.Sizeof(int32(0)))
	vidiocSParm    = ioRW('V', 22, unsafe.Sizeof(v4l2StreamParm{}))
)

type v4l2PixFormat struct {
	Width, Height uint32
	PixelFormat   uint32
	Field         uint32
	BytesPerLine  uint32
	SizeImage     uint32
	Colorspace    uint32
	Priv          uint32
	Flags         uint32
	YcbcrEnc      uint32
	Quantization  uint32
	XferFunc      uint32
}

type v4l2Format struct {
	StreamType uint32
	raw        [200]byte
}

type v4l2RequestBuffers struct {
	Count        uint32
	StreamType   uint32
	Memory       uint32
	Capabilities uint32
	Reserved     [1]uint32
}

type v4l2Buffer struct {
	Index      uint32
	StreamType uint32
	BytesUsed  uint32
	Flags      uint32
	Field      uint32
	Timestamp  unix.Timeval
	TCType     uint32
	TCFlags    uint32
	TCFrames   uint8
	TCSeconds  uint8
	TCMinutes  uint8
	TCHours    uint8
	TCUserbits [4]uint8
	Sequence   uint32
	Memory     uint32
	union      [8]byte // v4l2_buffer's m union; Offset read via unsafe cast
	Length     uint32
	Reserved2  uint32
	RequestFD  int32
}

type v4l2ExportBuffer struct {
	StreamType uint32
	Index      uint32
	Plane      uint32
	Flags      uint32
	FD         int32
	Reserved   [11]uint32
}

type v4l2Fract struct{ Numerator, Denominator uint32 }

type v4l2CaptureParm struct {
	Capability     uint32
	CaptureMode    uint32
	TimePerFrame   v4l2Fract
	ExtendedMode   uint32
	ReadBuffers    uint32
	Reserved       [4]uint32
}

type v4l2StreamParm struct {
	StreamType uint32
	raw        [200]byte
}

type v4l2Device struct {
	f  *os.File
	fd uintptr
}

func newV4L2Device() device { return &v4l2Device{} }

func (d *v4l2Device) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *v4l2Device) Open(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return errs.New(errs.NoDevice, "capture.Open", err)
	}
	d.f = f
	d.fd = f.Fd()
	return nil
}

func (d *v4l2Device) SetFormat(width, height uint32, format frame.Format) (uint32, uint32, frame.Format, error) {
	fourccVal, ok := fourccFor(format)
	if !ok {
		return 0, 0, "", errs.New(errs.FormatUnsupported, "capture.SetFormat", nil)
	}
	pix := v4l2PixFormat{Width: width, Height: height, PixelFormat: fourccVal, Field: fieldNone}
	var f v4l2Format
	f.StreamType = bufTypeVideoCapture
	*(*v4l2PixFormat)(unsafe.Pointer(&f.raw[0])) = pix

	if err := d.ioctl(vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return 0, 0, "", errs.New(errs.Init, "capture.SetFormat", err)
	}
	got := *(*v4l2PixFormat)(unsafe.Pointer(&f.raw[0]))
	gotFormat, ok := formatForFourcc(got.PixelFormat)
	if !ok {
		return 0, 0, "", errs.New(errs.FormatUnsupported, "capture.SetFormat(driver-chosen)", nil)
	}
	return got.Width, got.Height, gotFormat, nil
}

func (d *v4l2Device) SetFrameRate(hz uint32) (uint32, error) {
	var p v4l2StreamParm
	p.StreamType = bufTypeVideoCapture
	parm := v4l2CaptureParm{TimePerFrame: v4l2Fract{Numerator: 1, Denominator: hz}}
	*(*v4l2CaptureParm)(unsafe.Pointer(&p.raw[0])) = parm

	if err := d.ioctl(vidiocSParm, unsafe.Pointer(&p)); err != nil {
		return 0, errs.New(errs.Init, "capture.SetFrameRate", err)
	}
	got := *(*v4l2CaptureParm)(unsafe.Pointer(&p.raw[0]))
	if got.TimePerFrame.Numerator == 0 {
		return hz, nil
	}
	return got.TimePerFrame.Denominator / got.TimePerFrame.Numerator, nil
}

func (d *v4l2Device) RequestBuffers(count uint32) (uint32, error) {
	req := v4l2RequestBuffers{StreamType: bufTypeVideoCapture, Count: count, Memory: memoryMMAP}
	if err := d.ioctl(vidiocReqBufs, unsafe.Pointer(&req)); err != nil {
		return 0, errs.New(errs.Init, "capture.RequestBuffers", err)
	}
	return req.Count, nil
}

func (d *v4l2Device) QueryBuffer(index uint32) (uint32, uint32, error) {
	buf := v4l2Buffer{StreamType: bufTypeVideoCapture, Memory: memoryMMAP, Index: index}
	if err := d.ioctl(vidiocQueryBuf, unsafe.Pointer(&buf)); err != nil {
		return 0, 0, errs.New(errs.Init, "capture.QueryBuffer", err)
	}
	offset := *(*uint32)(unsafe.Pointer(&buf.union[0]))
	return offset, buf.Length, nil
}

func (d *v4l2Device) Mmap(offset, length uint32) ([]byte, error) {
	b, err := unix.Mmap(int(d.fd), int64(offset), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errs.New(errs.OutOfMemory, "capture.Mmap", err)
	}
	return b, nil
}

func (d *v4l2Device) Munmap(buf []byte) error {
	return unix.Munmap(buf)
}

func (d *v4l2Device) ExportDMABuf(index uint32) (int, error) {
	exp := v4l2ExportBuffer{StreamType: bufTypeVideoCapture, Index: index}
	if err := d.ioctl(vidiocExpBuf, unsafe.Pointer(&exp)); err != nil {
		// Not every driver supports DMABUF export; treat as "no DMA", not
		// a fatal capture error.
		return -1, nil
	}
	return int(exp.FD), nil
}

func (d *v4l2Device) QueueBuffer(index uint32) error {
	buf := v4l2Buffer{StreamType: bufTypeVideoCapture, Memory: memoryMMAP, Index: index}
	if err := d.ioctl(vidiocQBuf, unsafe.Pointer(&buf)); err != nil {
		return errs.New(errs.Init, "capture.QueueBuffer", err)
	}
	return nil
}

func (d *v4l2Device) DequeueBuffer() (uint32, uint32, error) {
	buf := v4l2Buffer{StreamType: bufTypeVideoCapture, Memory: memoryMMAP}
	if err := d.ioctl(vidiocDQBuf, unsafe.Pointer(&buf)); err != nil {
		if err == unix.EAGAIN {
			return 0, 0, errs.New(errs.Timeout, "capture.DequeueBuffer", err)
		}
		return 0, 0, errs.New(errs.Init, "capture.DequeueBuffer", err)
	}
	return buf.Index, buf.BytesUsed, nil
}

func (d *v4l2Device) StreamOn() error {
	bufType := bufTypeVideoCapture
	if err := d.ioctl(vidiocStreamOn, unsafe.Pointer(&bufType)); err != nil {
		return errs.New(errs.Init, "capture.StreamOn", err)
	}
	return nil
}

func (d *v4l2Device) StreamOff() error {
	bufType := bufTypeVideoCapture
	if err := d.ioctl(vidiocStreamOff, unsafe.Pointer(&bufType)); err != nil {
		return errs.New(errs.Init, "capture.StreamOff", err)
	}
	return nil
}

func (d *v4l2Device) WaitReadable(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, errs.New(errs.Init, "capture.WaitReadable", err)
	}
	if n == 0 {
		return false, nil
	}
	return fds[0].Revents&unix.POLLIN != 0, nil
}

func (d *v4l2Device) Close() error {
	if d.f == nil {
		return nil
	}
	return d.f.Close()
}
