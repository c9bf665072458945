package convert

import (
	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
)

// NV16ToNV12 decimates NV16's 4:2:2 interleaved chroma vertically by
// averaging row pairs, producing 4:2:0 NV12. Horizontal sampling is
// already shared between the two formats.
func NV16ToNV12(dst *frame.Frame, dstW, dstH int, off Offset, src []byte, srcW, srcH, srcStride int) error {
	if srcW <= 0 || srcH <= 0 {
		return errs.New(errs.InvalidParam, "convert.NV16ToNV12", nil)
	}
	lumaSize := srcStride * srcH
	chromaStride := srcStride // NV16 chroma plane has one UV pair per luma column pair, same row stride as luma
	srcUV := src[lumaSize:]

	stride := dstW
	if err := prepareDst(dst, frame.NV12, dstW, dstH, stride); err != nil {
		return err
	}
	yPlane := dst.Data[:stride*dstH]
	uvPlane := dst.Data[stride*dstH:]

	for y := 0; y < srcH; y++ {
		copy(yPlane[(off.Y+y)*stride+off.X:], src[y*srcStride:y*srcStride+srcW])
	}

	chromaW := srcW / 2
	for cy := 0; cy*2 < srcH; cy++ {
		y0 := 2 * cy
		y1 := y0 + 1
		row0 := srcUV[y0*chromaStride:]
		haveRow1 := y1 < srcH
		var row1 []byte
		if haveRow1 {
			row1 = srcUV[y1*chromaStride:]
		}
		cdy := ((off.Y / 2) + cy) * stride
		for cx := 0; cx < chromaW; cx++ {
			u0, v0 := row0[2*cx], row0[2*cx+1]
			u, v := u0, v0
			if haveRow1 {
				u1, v1 := row1[2*cx], row1[2*cx+1]
				u = avg2(u0, u1)
				v = avg2(v0, v1)
			}
			cdx := cdy + 2*((off.X/2)+cx)
			uvPlane[cdx] = u
			uvPlane[cdx+1] = v
		}
	}
	return nil
}

// NV12ToNV12 is the identity pass-through required by the router so every
// format reaching the codec/display stage can go through the same call
// site. With no centering requested and matching geometry this is a
// byte-identical copy (§8).
func NV12ToNV12(dst *frame.Frame, dstW, dstH int, off Offset, src []byte, srcW, srcH, srcStride int) error {
	if srcW <= 0 || srcH <= 0 {
		return errs.New(errs.InvalidParam, "convert.NV12ToNV12", nil)
	}
	stride := dstW
	if err := prepareDst(dst, frame.NV12, dstW, dstH, stride); err != nil {
		return err
	}
	if off.X == 0 && off.Y == 0 && dstW == srcW && dstH == srcH && stride == srcStride {
		copy(dst.Data, src[:frame.PayloadSize(frame.NV12, srcW, srcH)])
		return nil
	}

	yPlane := dst.Data[:stride*dstH]
	uvPlane := dst.Data[stride*dstH:]
	srcLumaSize := srcStride * srcH
	srcUV := src[srcLumaSize:]

	for y := 0; y < srcH; y++ {
		copy(yPlane[(off.Y+y)*stride+off.X:], src[y*srcStride:y*srcStride+srcW])
	}
	chromaH := (srcH + 1) / 2
	chromaW := (srcW + 1) / 2
	chromaStride := srcStride
	for cy := 0; cy < chromaH; cy++ {
		cdy := ((off.Y / 2) + cy) * stride
		cdx := cdy + 2*(off.X/2)
		copy(uvPlane[cdx:cdx+2*chromaW], srcUV[cy*chromaStride:cy*chromaStride+2*chromaW])
	}
	return nil
}
