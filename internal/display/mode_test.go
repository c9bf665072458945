package display

import "testing"

func modes(ms ...ModeInfo) []ModeInfo { return ms }

func TestSelectModeExactResExactHz(t *testing.T) {
	ms := modes(
		ModeInfo{Width: 1280, Height: 720, Refresh: 50},
		ModeInfo{Width: 1920, Height: 1080, Refresh: 60},
		ModeInfo{Width: 1920, Height: 1080, Refresh: 50},
	)
	got, ok := selectMode(ms, 1920, 1080, 60)
	if !ok {
		t.Fatalf("selectMode: no match")
	}
	if got.Width != 1920 || got.Height != 1080 || got.Refresh != 60 {
		t.Fatalf("selectMode: got %+v, want exact 1920x1080@60", got)
	}
}

func TestSelectModeRejectsInterlaced(t *testing.T) {
	ms := modes(
		ModeInfo{Width: 1920, Height: 1080, Refresh: 60, Interlaced: true},
		ModeInfo{Width: 1920, Height: 1080, Refresh: 50},
	)
	got, ok := selectMode(ms, 1920, 1080, 60)
	if !ok {
		t.Fatalf("selectMode: no match")
	}
	if got.Refresh != 50 {
		t.Fatalf("selectMode: picked interlaced mode, got %+v", got)
	}
}

func TestSelectModeSameWidthSmallerHeightBeatsFallback(t *testing.T) {
	ms := modes(
		ModeInfo{Width: 1920, Height: 1080, Refresh: 60},
		ModeInfo{Width: 1920, Height: 800, Refresh: 60},
	)
	got, ok := selectMode(ms, 1920, 900, 60)
	if !ok {
		t.Fatalf("selectMode: no match")
	}
	if got.Height != 800 {
		t.Fatalf("selectMode: want same-width-smaller-height 1920x800, got %+v", got)
	}
}

func TestSelectModeFallsBackToPreferred(t *testing.T) {
	ms := modes(
		ModeInfo{Width: 1280, Height: 720, Refresh: 60, Preferred: true},
		ModeInfo{Width: 800, Height: 600, Refresh: 60},
	)
	got, ok := selectMode(ms, 3840, 2160, 60)
	if !ok {
		t.Fatalf("selectMode: no match")
	}
	if !got.Preferred {
		t.Fatalf("selectMode: want preferred mode fallback, got %+v", got)
	}
}

func TestSelectMode640x416CoercesHeightButKeepsRawTiming(t *testing.T) {
	raw := "connector-native-640x480-timing"
	ms := modes(ModeInfo{Width: 640, Height: 480, Refresh: 60, raw: raw})
	got, ok := selectMode(ms, 640, 416, 60)
	if !ok {
		t.Fatalf("selectMode: no match")
	}
	if got.Height != 416 {
		t.Fatalf("selectMode: want coerced logical height 416, got %d", got.Height)
	}
	if got.raw != raw {
		t.Fatalf("selectMode: raw timing must pass through untouched, got %v", got.raw)
	}
}

func TestSelectModeNoModesRejected(t *testing.T) {
	ms := modes(ModeInfo{Width: 1920, Height: 1080, Refresh: 60, Interlaced: true})
	if _, ok := selectMode(ms, 1920, 1080, 60); ok {
		t.Fatalf("selectMode: expected no match when every mode is rejected")
	}
}

func TestSelectCompatibleCrtc(t *testing.T) {
	encoders := []EncoderInfo{
		{ID: 10, PossibleCrtcs: []uint32{100}},
		{ID: 11, PossibleCrtcs: []uint32{101, 102}},
	}
	crtcIDs := []uint32{100, 101, 102}

	got, ok := selectCompatibleCrtc([]uint32{11}, encoders, crtcIDs)
	if !ok || got != 101 {
		t.Fatalf("selectCompatibleCrtc: got %d,%v want 101,true", got, ok)
	}

	if _, ok := selectCompatibleCrtc([]uint32{999}, encoders, crtcIDs); ok {
		t.Fatalf("selectCompatibleCrtc: expected no match for unknown encoder id")
	}
}
