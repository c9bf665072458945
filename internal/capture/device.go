package capture

import (
	"time"

	"github.com/lanternops/streamnode/internal/frame"
)

// device abstracts every V4L2 ioctl the runtime needs so tests can
// substitute a fake, mirroring internal/display's backend/fake split.
type device interface {
	Open(path string) error

	// SetFormat negotiates geometry and pixel format; the driver may return
	// a different width/height/format than requested, which the caller
	// must accept (V4L2 semantics: this call never fails on mismatch alone).
	SetFormat(width, height uint32, format frame.Format) (actualW, actualH uint32, actualFormat frame.Format, err error)
	SetFrameRate(hz uint32) (actualHz uint32, err error)

	// RequestBuffers asks for count mmap buffers; the driver may return
	// fewer.
	RequestBuffers(count uint32) (actualCount uint32, err error)
	QueryBuffer(index uint32) (offset, length uint32, err error)
	Mmap(offset, length uint32) ([]byte, error)
	Munmap(buf []byte) error

	// ExportDMABuf exports a buffer as a dma-buf fd via VIDIOC_EXPBUF.
	// Returns (-1, nil) rather than an error when the driver doesn't
	// support export, since that is a normal, expected capability gap.
	ExportDMABuf(index uint32) (fd int, err error)

	QueueBuffer(index uint32) error
	DequeueBuffer() (index uint32, bytesUsed uint32, err error)

	StreamOn() error
	StreamOff() error

	// WaitReadable blocks up to timeout for the device fd to become
	// readable. A false, nil return means the wait timed out with no
	// frame ready (not an error).
	WaitReadable(timeout time.Duration) (ready bool, err error)

	Close() error
}

// fourccFor maps a capture-side frame.Format to its V4L2 pixel format
// fourcc. Only the formats §1 lists as capture-source formats are covered;
// codec/display-only targets (XRGB8888, RGB888, BGR888, RGB565, H264) have
// no V4L2 capture analogue and are rejected by the caller before reaching
// this lookup.
func fourccFor(f frame.Format) (uint32, bool) {
	switch f {
	case frame.YUYV:
		return fourcc('Y', 'U', 'Y', 'V'), true
	case frame.RGB24:
		return fourcc('R', 'G', 'B', '3'), true
	case frame.BGR24:
		return fourcc('B', 'G', 'R', '3'), true
	case frame.NV12:
		return fourcc('N', 'V', '1', '2'), true
	case frame.NV16:
		return fourcc('N', 'V', '1', '6'), true
	case frame.YUV420:
		return fourcc('Y', 'U', '1', '2'), true
	case frame.MJPEG:
		return fourcc('M', 'J', 'P', 'G'), true
	case frame.JPEG:
		return fourcc('J', 'P', 'E', 'G'), true
	default:
		return 0, false
	}
}

func formatForFourcc(v uint32) (frame.Format, bool) {
	candidates := []frame.Format{
		frame.YUYV, frame.RGB24, frame.BGR24, frame.NV12,
		frame.NV16, frame.YUV420, frame.MJPEG, frame.JPEG,
	}
	for _, f := range candidates {
		if fc, ok := fourccFor(f); ok && fc == v {
			return f, true
		}
	}
	return "", false
}

func fourcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}
