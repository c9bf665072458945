package display

// ModeInfo is the Go-native projection of a connector's drm_mode_modeinfo
// entry that runtime.go and the scoring function need; the wire-format
// struct itself stays private to the backend.
type ModeInfo struct {
	Width, Height uint16
	Refresh       uint32
	Interlaced    bool
	Preferred     bool

	// raw is the backend's opaque wire-format mode (e.g. a
	// drm_mode_modeinfo), carried through unmodified so SetCrtc drives the
	// connector with its true timings even when Height above has been
	// coerced by the 640x416 special case.
	raw any
}

// modeScore ranks candidate modes for a requested (width, height, hz),
// lowest score wins. Interlaced modes are excluded before scoring ever
// runs. Scores partition into bands so that, e.g., every exact-resolution
// match always outranks every same-width-smaller-height match regardless
// of refresh rate distance within a band.
const (
	scoreExactResExactHz = iota
	scoreExactResAnyHz
	scoreSameWidthSmallerHeight
	scorePreferred
	scoreFallback
	scoreReject = -1
)

func modeScore(m ModeInfo, wantW, wantH uint16, wantHz uint32) int {
	if m.Interlaced {
		return scoreReject
	}
	switch {
	case m.Width == wantW && m.Height == wantH && m.Refresh == wantHz:
		return scoreExactResExactHz
	case m.Width == wantW && m.Height == wantH:
		return scoreExactResAnyHz
	case m.Width == wantW && m.Height < wantH:
		return scoreSameWidthSmallerHeight
	case m.Preferred:
		return scorePreferred
	default:
		return scoreFallback
	}
}

// selectMode picks the best-scoring mode for (wantW, wantH, wantHz) per
// §4.F's band order, applying the 640x416 -> 640x480(vdisplay=416) special
// case before scoring. Returns false if every candidate is interlaced.
func selectMode(modes []ModeInfo, wantW, wantH uint16, wantHz uint32) (ModeInfo, bool) {
	lookupH := wantH
	coerce416 := wantW == 640 && wantH == 416
	if coerce416 {
		lookupH = 480
	}

	bestIdx := -1
	bestScore := scoreReject
	for i, m := range modes {
		s := modeScore(m, wantW, lookupH, wantHz)
		if s == scoreReject {
			continue
		}
		if bestIdx == -1 || s < bestScore {
			bestIdx = i
			bestScore = s
		}
	}
	if bestIdx == -1 {
		return ModeInfo{}, false
	}
	chosen := modes[bestIdx]
	if coerce416 && chosen.Width == 640 && chosen.Height == 480 {
		// The connector's actual timing (raw) still drives SetCrtc; only
		// the logical vdisplay the rest of the engine reasons about (mode
		// fit, centering, framebuffer height) is coerced to 416.
		chosen.Height = 416
	}
	return chosen, true
}
