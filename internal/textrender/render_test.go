package textrender

import (
	"testing"

	"github.com/lanternops/streamnode/internal/frame"
)

func TestRenderNV12GeometryAndPlanes(t *testing.T) {
	dst := frame.New()
	if err := Render(dst, frame.NV12, 64, 32, MsgNoLiveVideo); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if dst.Format != frame.NV12 || dst.Width != 64 || dst.Height != 32 || dst.Stride != 64 {
		t.Fatalf("dst = %+v", dst)
	}
	want := frame.PayloadSize(frame.NV12, 64, 32)
	if dst.Used != want {
		t.Fatalf("used = %d, want %d", dst.Used, want)
	}
	foundFG := false
	for _, b := range dst.Data[:64*32] {
		if b == lumaFG {
			foundFG = true
		} else if b != lumaBG {
			t.Fatalf("luma plane byte %d is neither fg nor bg", b)
		}
	}
	if !foundFG {
		t.Fatalf("no foreground pixels drawn for %q", MsgNoLiveVideo)
	}
	uv := dst.Data[64*32:want]
	for _, b := range uv {
		if b != chromaNeutral {
			t.Fatalf("chroma byte = %d, want neutral %d", b, chromaNeutral)
		}
	}
}

func TestRenderXRGB8888AlphaAlwaysOpaque(t *testing.T) {
	dst := frame.New()
	if err := Render(dst, frame.XRGB8888, 48, 24, MsgOnlineActive); err != nil {
		t.Fatalf("Render: %v", err)
	}
	for i := 0; i < 48*24; i++ {
		if dst.Data[i*4+3] != 0xFF {
			t.Fatalf("pixel %d alpha = %#x, want 0xFF", i, dst.Data[i*4+3])
		}
	}
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	dst := frame.New()
	if err := Render(dst, frame.H264, 64, 32, MsgNoLiveVideo); err == nil {
		t.Fatalf("expected FormatUnsupported for H264")
	}
}

func TestRenderRejectsBadGeometry(t *testing.T) {
	dst := frame.New()
	if err := Render(dst, frame.NV12, 0, 32, MsgNoLiveVideo); err == nil {
		t.Fatalf("expected error for zero width")
	}
}

func TestRenderExplicitLineBreaksStackVertically(t *testing.T) {
	dst := frame.New()
	if err := Render(dst, frame.NV12, 200, 100, "UNSUPPORTED\nRESOLUTION"); err != nil {
		t.Fatalf("Render: %v", err)
	}
	// Two lines must not collapse onto identical rows: find the first and
	// last luma rows touched by foreground pixels and confirm they differ.
	firstRow, lastRow := -1, -1
	for y := 0; y < 100; y++ {
		row := dst.Data[y*dst.Stride : y*dst.Stride+200]
		for _, b := range row {
			if b == lumaFG {
				if firstRow == -1 {
					firstRow = y
				}
				lastRow = y
				break
			}
		}
	}
	if firstRow == -1 || firstRow == lastRow {
		t.Fatalf("expected foreground pixels spanning multiple rows, first=%d last=%d", firstRow, lastRow)
	}
}

func TestChooseScaleNeverExceedsCanvas(t *testing.T) {
	lines := []string{MsgUnsupportedCaptureFormat}
	scale := chooseScale(lines, 100, 20)
	charAdvance, _ := cellAdvance(scale)
	w := len(MsgUnsupportedCaptureFormat)*charAdvance - charGap*scale
	if w > 100 {
		t.Fatalf("composed width %d exceeds canvas width 100 at scale %d", w, scale)
	}
}

func TestGlyphSetUnknownRuneIsBlank(t *testing.T) {
	for row := 0; row < glyphHeight; row++ {
		for col := 0; col < glyphWidth; col++ {
			if glyphSet('?', col, row) {
				t.Fatalf("unknown rune '?' should render blank at (%d,%d)", col, row)
			}
		}
	}
}
