package convert

import (
	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
)

// YUV420ToNV12 interleaves I420's separate U and V planes into NV12's
// single interleaved UV plane. No resampling is needed — both are 4:2:0 —
// so this is lossless and exactly invertible (§8 round-trip property).
func YUV420ToNV12(dst *frame.Frame, dstW, dstH int, off Offset, src []byte, srcW, srcH, srcStride int) error {
	if srcW <= 0 || srcH <= 0 {
		return errs.New(errs.InvalidParam, "convert.YUV420ToNV12", nil)
	}
	lumaSize := srcStride * srcH
	chromaW := (srcW + 1) / 2
	chromaH := (srcH + 1) / 2
	chromaStride := chromaW
	uPlane := src[lumaSize : lumaSize+chromaStride*chromaH]
	vPlane := src[lumaSize+chromaStride*chromaH : lumaSize+2*chromaStride*chromaH]

	stride := dstW
	if err := prepareDst(dst, frame.NV12, dstW, dstH, stride); err != nil {
		return err
	}
	yPlane := dst.Data[:stride*dstH]
	uvPlane := dst.Data[stride*dstH:]

	for y := 0; y < srcH; y++ {
		copy(yPlane[(off.Y+y)*stride+off.X:], src[y*srcStride:y*srcStride+srcW])
	}
	for cy := 0; cy < chromaH; cy++ {
		cdy := ((off.Y / 2) + cy) * stride
		for cx := 0; cx < chromaW; cx++ {
			cdx := cdy + 2*((off.X/2)+cx)
			uvPlane[cdx] = uPlane[cy*chromaStride+cx]
			uvPlane[cdx+1] = vPlane[cy*chromaStride+cx]
		}
	}
	return nil
}
