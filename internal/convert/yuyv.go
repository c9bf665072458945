package convert

import (
	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
)

// YUYVToNV12 converts a packed 4:2:2 YUYV source into planar 4:2:0 NV12.
// Two source rows are averaged to produce each output chroma row (§4.B:
// "Chroma decimation for 4:2:0 outputs averages the 2x2 block"); YUYV
// already halves chroma horizontally, so only the vertical pair needs
// averaging here.
func YUYVToNV12(dst *frame.Frame, dstW, dstH int, off Offset, src []byte, srcW, srcH, srcStride int) error {
	if srcW <= 0 || srcH <= 0 || srcW%2 != 0 {
		return errs.New(errs.InvalidParam, "convert.YUYVToNV12", nil)
	}
	stride := dstW
	if err := prepareDst(dst, frame.NV12, dstW, dstH, stride); err != nil {
		return err
	}
	yPlane := dst.Data[:stride*dstH]
	uvPlane := dst.Data[stride*dstH:]

	for y := 0; y < srcH; y += 2 {
		row0 := src[y*srcStride:]
		var row1 []byte
		if y+1 < srcH {
			row1 = src[(y+1)*srcStride:]
		} else {
			row1 = row0
		}

		dy0 := (off.Y + y) * stride
		dy1 := dy0 + stride
		cdy := ((off.Y + y) / 2) * stride
		for x := 0; x+1 < srcW; x += 2 {
			si := x * 2
			y0a, u0, y1a, v0 := row0[si], row0[si+1], row0[si+2], row0[si+3]
			y0b, u1, y1b, v1 := row1[si], row1[si+1], row1[si+2], row1[si+3]

			dx := off.X + x
			yPlane[dy0+dx] = y0a
			yPlane[dy0+dx+1] = y1a
			if y+1 < srcH {
				yPlane[dy1+dx] = y0b
				yPlane[dy1+dx+1] = y1b
			}

			u := avg2(u0, u1)
			v := avg2(v0, v1)
			cdx := cdy + off.X + x
			uvPlane[cdx] = u
			uvPlane[cdx+1] = v
		}
	}
	return nil
}

// YUYVToARGB converts packed 4:2:2 YUYV to packed XRGB8888 (alpha = 0xFF).
func YUYVToARGB(dst *frame.Frame, dstW, dstH int, off Offset, src []byte, srcW, srcH, srcStride int) error {
	if srcW <= 0 || srcH <= 0 || srcW%2 != 0 {
		return errs.New(errs.InvalidParam, "convert.YUYVToARGB", nil)
	}
	stride := dstW * 4
	if err := prepareDst(dst, frame.XRGB8888, dstW, dstH, stride); err != nil {
		return err
	}

	for y := 0; y < srcH; y++ {
		row := src[y*srcStride:]
		drow := dst.Data[(off.Y+y)*stride:]
		for x := 0; x+1 < srcW; x += 2 {
			si := x * 2
			y0, u, y1, v := row[si], row[si+1], row[si+2], row[si+3]
			r0, g0, b0 := yuvToRGB(y0, u, v)
			r1, g1, b1 := yuvToRGB(y1, u, v)

			di := (off.X + x) * 4
			drow[di+0] = b0
			drow[di+1] = g0
			drow[di+2] = r0
			drow[di+3] = 0xFF
			drow[di+4] = b1
			drow[di+5] = g1
			drow[di+6] = r1
			drow[di+7] = 0xFF
		}
	}
	return nil
}

func avg2(a, b byte) byte {
	return byte((int(a) + int(b) + 1) / 2)
}
