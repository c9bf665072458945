package convert

import (
	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
)

// packedRGBToNV12 is shared by RGB24->NV12 and BGR24->NV12; swapRB selects
// byte order (false = R,G,B; true = B,G,R).
func packedRGBToNV12(dst *frame.Frame, dstW, dstH int, off Offset, src []byte, srcW, srcH, srcStride int, swapRB bool) error {
	if srcW <= 0 || srcH <= 0 {
		return errs.New(errs.InvalidParam, "convert.packedRGBToNV12", nil)
	}
	stride := dstW
	if err := prepareDst(dst, frame.NV12, dstW, dstH, stride); err != nil {
		return err
	}
	yPlane := dst.Data[:stride*dstH]
	uvPlane := dst.Data[stride*dstH:]

	pixelAt := func(row []byte, x int) (r, g, b byte) {
		p := row[x*3 : x*3+3]
		if swapRB {
			return p[2], p[1], p[0]
		}
		return p[0], p[1], p[2]
	}

	for y := 0; y < srcH; y++ {
		row := src[y*srcStride:]
		dy := (off.Y + y) * stride
		for x := 0; x < srcW; x++ {
			r, g, b := pixelAt(row, x)
			lum, _, _ := rgbToYUV(r, g, b)
			yPlane[dy+off.X+x] = lum
		}
	}

	for cy := 0; cy < (srcH+1)/2; cy++ {
		y0 := 2 * cy
		y1 := y0 + 1
		row0 := src[y0*srcStride:]
		var row1 []byte
		haveRow1 := y1 < srcH
		if haveRow1 {
			row1 = src[y1*srcStride:]
		}
		cdy := ((off.Y / 2) + cy) * stride
		for cx := 0; cx < (srcW+1)/2; cx++ {
			x0 := 2 * cx
			x1 := x0 + 1
			haveX1 := x1 < srcW

			var us, vs, n int
			r, g, b := pixelAt(row0, x0)
			_, u, v := rgbToYUV(r, g, b)
			us, vs, n = int(u), int(v), 1
			if haveX1 {
				r, g, b = pixelAt(row0, x1)
				_, u, v = rgbToYUV(r, g, b)
				us += int(u)
				vs += int(v)
				n++
			}
			if haveRow1 {
				r, g, b = pixelAt(row1, x0)
				_, u, v = rgbToYUV(r, g, b)
				us += int(u)
				vs += int(v)
				n++
				if haveX1 {
					r, g, b = pixelAt(row1, x1)
					_, u, v = rgbToYUV(r, g, b)
					us += int(u)
					vs += int(v)
					n++
				}
			}
			cdx := cdy + 2*((off.X/2)+cx)
			uvPlane[cdx] = byte((us + n/2) / n)
			uvPlane[cdx+1] = byte((vs + n/2) / n)
		}
	}
	return nil
}

func RGB24ToNV12(dst *frame.Frame, dstW, dstH int, off Offset, src []byte, srcW, srcH, srcStride int) error {
	return packedRGBToNV12(dst, dstW, dstH, off, src, srcW, srcH, srcStride, false)
}

func BGR24ToNV12(dst *frame.Frame, dstW, dstH int, off Offset, src []byte, srcW, srcH, srcStride int) error {
	return packedRGBToNV12(dst, dstW, dstH, off, src, srcW, srcH, srcStride, true)
}

func packedRGBToARGB(dst *frame.Frame, dstW, dstH int, off Offset, src []byte, srcW, srcH, srcStride int, swapRB bool) error {
	if srcW <= 0 || srcH <= 0 {
		return errs.New(errs.InvalidParam, "convert.packedRGBToARGB", nil)
	}
	stride := dstW * 4
	if err := prepareDst(dst, frame.XRGB8888, dstW, dstH, stride); err != nil {
		return err
	}
	for y := 0; y < srcH; y++ {
		row := src[y*srcStride:]
		drow := dst.Data[(off.Y+y)*stride:]
		for x := 0; x < srcW; x++ {
			p := row[x*3 : x*3+3]
			r, g, b := p[0], p[1], p[2]
			if swapRB {
				r, b = b, r
			}
			di := (off.X + x) * 4
			drow[di+0] = b
			drow[di+1] = g
			drow[di+2] = r
			drow[di+3] = 0xFF
		}
	}
	return nil
}

func RGB24ToARGB(dst *frame.Frame, dstW, dstH int, off Offset, src []byte, srcW, srcH, srcStride int) error {
	return packedRGBToARGB(dst, dstW, dstH, off, src, srcW, srcH, srcStride, false)
}

func BGR24ToARGB(dst *frame.Frame, dstW, dstH int, off Offset, src []byte, srcW, srcH, srcStride int) error {
	return packedRGBToARGB(dst, dstW, dstH, off, src, srcW, srcH, srcStride, true)
}
