// Package textrender rasterizes the small set of canned status strings
// (§4.G) onto a frame for the display stub path: resolution/format
// mismatches, loss of live video, and the online-but-idle state. It owns a
// fixed-cell bitmap glyph atlas (font.go) and composes centered, explicitly
// line-broken text — no word-wrapping.
package textrender

import (
	"strings"

	"github.com/lanternops/streamnode/internal/errs"
	"github.com/lanternops/streamnode/internal/frame"
)

// Canned status strings the stub path draws (§4.F/§4.G).
const (
	MsgUnsupportedResolution    = "UNSUPPORTED RESOLUTION"
	MsgUnsupportedCaptureFormat = "UNSUPPORTED CAPTURE FORMAT"
	MsgNoLiveVideo              = "NO LIVE VIDEO"
	MsgOnlineActive             = "ONLINE IS ACTIVE"
)

const (
	charGap    = 1 // pixels between glyph cells, before scaling
	lineGap    = 1 // pixels between text lines, before scaling
	maxScale   = 8
	marginFrac = 10 // reserve 1/marginFrac of each axis as margin
)

// lumaFG/lumaBG/chromaNeutral give NV12 a bright-on-dark rendering; packed
// formats use the RGB equivalent (white on black).
const (
	lumaFG        = 235
	lumaBG        = 16
	chromaNeutral = 128
)

// Render composes message (explicit "\n" line breaks, no word-wrap) centered
// onto a (width, height) frame of the given format, replacing dst's
// contents entirely. format must be one this package knows how to paint
// (NV12 or a packed RGB/XRGB/RGB565 display format); anything else is
// FormatUnsupported.
func Render(dst *frame.Frame, format frame.Format, width, height int, message string) error {
	if width <= 0 || height <= 0 {
		return errs.New(errs.InvalidParam, "textrender.Render", nil)
	}
	stride, err := strideFor(format, width)
	if err != nil {
		return err
	}
	size := frame.PayloadSize(format, width, height)
	if size == 0 {
		return errs.New(errs.FormatUnsupported, "textrender.Render", nil)
	}
	if err := dst.EnsureCapacity(size); err != nil {
		return errs.New(errs.OutOfMemory, "textrender.Render", err)
	}
	dst.Width = width
	dst.Height = height
	dst.Stride = stride
	dst.Format = format
	dst.Used = size

	fillBackground(dst, format, width, height)

	lines := strings.Split(message, "\n")
	scale := chooseScale(lines, width, height)
	drawLines(dst, format, width, height, lines, scale)
	return nil
}

func strideFor(format frame.Format, width int) (int, error) {
	if format == frame.NV12 {
		return width, nil
	}
	bpp := frame.BytesPerPixel(format)
	if bpp == 0 {
		return 0, errs.New(errs.FormatUnsupported, "textrender.strideFor", nil)
	}
	return width * bpp, nil
}

func cellAdvance(scale int) (charAdvance, lineAdvance int) {
	return (glyphWidth + charGap) * scale, (glyphHeight + lineGap) * scale
}

func lineWidth(line string, scale int) int {
	if len(line) == 0 {
		return 0
	}
	charAdvance, _ := cellAdvance(scale)
	return len(line)*charAdvance - charGap*scale
}

func blockHeight(lines []string, scale int) int {
	if len(lines) == 0 {
		return 0
	}
	_, lineAdvance := cellAdvance(scale)
	return len(lines)*lineAdvance - lineGap*scale
}

// chooseScale picks the largest integer scale (down to 1) whose composed
// block fits within a margin of the canvas. Scale 1 is the floor: a block
// that does not fit even at scale 1 is still drawn at scale 1, and drawLine
// clips the pixels that fall outside the frame. Canned messages are short,
// so real display modes fit them at scale 1; this only grows the scale
// when there is headroom.
func chooseScale(lines []string, width, height int) int {
	maxLen := 0
	for _, l := range lines {
		if len(l) > maxLen {
			maxLen = len(l)
		}
	}
	limitW := width - width/marginFrac
	limitH := height - height/marginFrac
	for scale := maxScale; scale > 1; scale-- {
		charAdvance, _ := cellAdvance(scale)
		w := maxLen*charAdvance - charGap*scale
		h := blockHeight(lines, scale)
		if w <= limitW && h <= limitH {
			return scale
		}
	}
	return 1
}

func drawLines(dst *frame.Frame, format frame.Format, width, height int, lines []string, scale int) {
	_, lineAdvance := cellAdvance(scale)
	startY := (height - blockHeight(lines, scale)) / 2
	for i, line := range lines {
		lw := lineWidth(line, scale)
		startX := (width - lw) / 2
		y0 := startY + i*lineAdvance
		drawLine(dst, format, width, height, line, startX, y0, scale)
	}
}

func drawLine(dst *frame.Frame, format frame.Format, width, height int, line string, x0, y0, scale int) {
	charAdvance, _ := cellAdvance(scale)
	for i, ch := range line {
		cx0 := x0 + i*charAdvance
		for row := 0; row < glyphHeight; row++ {
			for col := 0; col < glyphWidth; col++ {
				if !glyphSet(ch, col, row) {
					continue
				}
				for sy := 0; sy < scale; sy++ {
					py := y0 + row*scale + sy
					if py < 0 || py >= height {
						continue
					}
					for sx := 0; sx < scale; sx++ {
						px := cx0 + col*scale + sx
						if px < 0 || px >= width {
							continue
						}
						setForeground(dst, format, width, px, py)
					}
				}
			}
		}
	}
}

func fillBackground(dst *frame.Frame, format frame.Format, width, height int) {
	switch format {
	case frame.NV12:
		yPlane := dst.Data[:dst.Stride*height]
		for i := range yPlane {
			yPlane[i] = lumaBG
		}
		uvPlane := dst.Data[dst.Stride*height : frame.PayloadSize(frame.NV12, width, height)]
		for i := range uvPlane {
			uvPlane[i] = chromaNeutral
		}
	case frame.XRGB8888:
		for i := 0; i < width*height; i++ {
			dst.Data[i*4+3] = 0xFF
		}
	case frame.RGB888, frame.BGR888, frame.RGB565:
		// Zero-valued background (black); EnsureCapacity does not zero
		// reused buffers, so clear it explicitly.
		for i := range dst.Data[:dst.Used] {
			dst.Data[i] = 0
		}
	}
}

func setForeground(dst *frame.Frame, format frame.Format, width, x, y int) {
	switch format {
	case frame.NV12:
		dst.Data[y*dst.Stride+x] = lumaFG
	case frame.XRGB8888:
		i := y*dst.Stride + x*4
		dst.Data[i+0] = 0xFF
		dst.Data[i+1] = 0xFF
		dst.Data[i+2] = 0xFF
		dst.Data[i+3] = 0xFF
	case frame.RGB888:
		i := y*dst.Stride + x*3
		dst.Data[i+0] = 0xFF
		dst.Data[i+1] = 0xFF
		dst.Data[i+2] = 0xFF
	case frame.BGR888:
		i := y*dst.Stride + x*3
		dst.Data[i+0] = 0xFF
		dst.Data[i+1] = 0xFF
		dst.Data[i+2] = 0xFF
	case frame.RGB565:
		i := y*dst.Stride + x*2
		dst.Data[i+0] = 0xFF
		dst.Data[i+1] = 0xFF
	}
}
