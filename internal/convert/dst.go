package convert

import (
	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
)

// Offset positions a smaller source within a larger destination canvas. The
// zero value means "no centering": the source fills the destination exactly.
type Offset struct {
	X, Y int
}

// CenterOffset computes the integer-division center per §8: "Sub-display
// capture geometry centers exactly".
func CenterOffset(modeW, modeH, srcW, srcH int) Offset {
	return Offset{X: (modeW - srcW) / 2, Y: (modeH - srcH) / 2}
}

// prepareDst sets dst's format/geometry/stride to (format, dstW, dstH) and
// ensures its buffer is large enough for the full destination canvas,
// without disturbing bytes outside the region the caller is about to write
// (centering leaves the remainder of the canvas untouched, per §4.B).
func prepareDst(dst *frame.Frame, format frame.Format, dstW, dstH, stride int) error {
	size := stride * dstH
	if format == frame.NV12 || format == frame.YUV420 || format == frame.NV16 {
		// Planar 4:2:0/4:2:2: luma stride*height plus chroma plane(s).
		size = frame.PayloadSize(format, dstW, dstH)
	}
	if err := dst.EnsureCapacity(size); err != nil {
		return errs.New(errs.OutOfMemory, "convert.prepareDst", err)
	}
	dst.Width = dstW
	dst.Height = dstH
	dst.Stride = stride
	dst.Format = format
	dst.Used = size
	return nil
}
