// Package convert implements the pixel-format conversion matrix (§4.B): a
// finite, enumerated set of "target ← source" pairs between the capture
// formats (YUYV, RGB24, BGR24, NV12, NV16, YUV420) and the codec/display
// targets (NV12, XRGB8888). Color conversion uses the BT.601 studio matrix.
package convert

// clampByte saturates v to [0,255].
func clampByte(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// rgbToYUV converts one RGB triple to BT.601 studio-range Y/U/V using the
// matrix from §4.B:
//
//	Y =  0.299R + 0.587G + 0.114B
//	U = -0.147R - 0.289G + 0.436B + 128
//	V =  0.615R - 0.515G - 0.100B + 128
//
// Fixed-point with a 16-bit fractional scale keeps this integer-only.
const fxShift = 16

const (
	fxYR = 19595  // 0.299 * 65536
	fxYG = 38470  // 0.587 * 65536
	fxYB = 7471   // 0.114 * 65536
	fxUR = -9634  // -0.147 * 65536
	fxUG = -18940 // -0.289 * 65536
	fxUB = 28574  // 0.436 * 65536
	fxVR = 40305  // 0.615 * 65536
	fxVG = -33751 // -0.515 * 65536
	fxVB = -6554  // -0.100 * 65536
)

func rgbToYUV(r, g, b byte) (y, u, v byte) {
	ri, gi, bi := int32(r), int32(g), int32(b)
	y = clampByte((fxYR*ri + fxYG*gi + fxYB*bi) >> fxShift)
	u = clampByte((fxUR*ri+fxUG*gi+fxUB*bi)>>fxShift + 128)
	v = clampByte((fxVR*ri+fxVG*gi+fxVB*bi)>>fxShift + 128)
	return
}

// Inverse BT.601 (YUV -> RGB), used when a packed-YUV source (YUYV) is
// converted directly into an RGB destination (XRGB8888).
const (
	fxRV = 91881  // 1.402 * 65536
	fxGU = -22554 // -0.344136 * 65536
	fxGV = -46802 // -0.714136 * 65536
	fxBU = 116130 // 1.772 * 65536
)

func yuvToRGB(y, u, v byte) (r, g, b byte) {
	yi := int32(y)
	ui := int32(u) - 128
	vi := int32(v) - 128
	r = clampByte(yi + (fxRV*vi)>>fxShift)
	g = clampByte(yi + (fxGU*ui+fxGV*vi)>>fxShift)
	b = clampByte(yi + (fxBU*ui)>>fxShift)
	return
}
