package convert

import (
	"fmt"

	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
)

// converter is the shape every entry in the matrix below implements: convert
// a source plane/packed buffer of (srcW, srcH, srcStride) into dst, writing
// only the rectangle starting at off within the (dstW, dstH) destination
// canvas.
type converter func(dst *frame.Frame, dstW, dstH int, off Offset, src []byte, srcW, srcH, srcStride int) error

type pair struct {
	src, dst frame.Format
}

// matrix is the exhaustive "target <- source" table (§4.B). Pairs outside
// this table are rejected rather than guessed at.
var matrix = map[pair]converter{
	{frame.YUYV, frame.NV12}:      YUYVToNV12,
	{frame.YUYV, frame.XRGB8888}:  YUYVToARGB,
	{frame.RGB24, frame.NV12}:     RGB24ToNV12,
	{frame.RGB24, frame.XRGB8888}: RGB24ToARGB,
	{frame.BGR24, frame.NV12}:     BGR24ToNV12,
	{frame.BGR24, frame.XRGB8888}: BGR24ToARGB,
	{frame.YUV420, frame.NV12}:    YUV420ToNV12,
	{frame.NV16, frame.NV12}:      NV16ToNV12,
	{frame.NV12, frame.NV12}:      NV12ToNV12,
}

// Convert dispatches (srcFormat -> dstFormat) to the matching conversion
// function. off positions the source rectangle within the destination
// canvas (use the zero Offset to fill the canvas exactly).
func Convert(dst *frame.Frame, dstFormat frame.Format, dstW, dstH int, off Offset, srcFormat frame.Format, src []byte, srcW, srcH, srcStride int) error {
	fn, ok := matrix[pair{srcFormat, dstFormat}]
	if !ok {
		return errs.New(errs.FormatUnsupported, fmt.Sprintf("convert.Convert(%s->%s)", srcFormat, dstFormat), nil)
	}
	return fn(dst, dstW, dstH, off, src, srcW, srcH, srcStride)
}

// Supported reports whether the matrix has an entry for (src, dst) without
// performing the conversion.
func Supported(src, dst frame.Format) bool {
	_, ok := matrix[pair{src, dst}]
	return ok
}
