package transcoder

import "sync"

// Stats mirrors the per-component counters of internal/codec at the
// end-to-end pipeline level: every frame that reaches Transcode, whether it
// produced bitstream output or not, and the aggregate byte/time totals
// across decode+convert+encode.
type Stats struct {
	mu sync.Mutex

	framesIn, framesOut uint64
	bytesIn, bytesOut   uint64
	totalNs             uint64
	errors              uint64
}

type Snapshot struct {
	FramesIn, FramesOut uint64
	BytesIn, BytesOut   uint64
	AvgLatencyNanos     uint64
	Errors              uint64
}

func (s *Stats) record(ok bool, nanos int64, bytesIn, bytesOut int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesIn++
	s.bytesIn += uint64(bytesIn)
	s.totalNs += uint64(nanos)
	if ok {
		s.framesOut++
		s.bytesOut += uint64(bytesOut)
	} else {
		s.errors++
	}
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	avg := uint64(0)
	if s.framesIn > 0 {
		avg = s.totalNs / s.framesIn
	}
	return Snapshot{
		FramesIn:        s.framesIn,
		FramesOut:       s.framesOut,
		BytesIn:         s.bytesIn,
		BytesOut:        s.bytesOut,
		AvgLatencyNanos: avg,
		Errors:          s.errors,
	}
}
