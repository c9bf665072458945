package codec

import "sync"

// Stats accumulates per-context counters updated on every processing call
// (§4.D). The exponential moving value for processing time is in fact a
// plain running mean (total/count) per the spec's own definition.
type Stats struct {
	mu sync.Mutex

	framesProcessed   uint64
	totalProcessingNs uint64

	successIn, errorIn   uint64 // decode direction
	successOut, errorOut uint64 // encode direction

	keyframes uint64
	bytesIn   uint64
	bytesOut  uint64

	consecutiveErrors uint64
}

// Snapshot is an immutable, caller-pollable view of Stats (ustreamer's
// periodic stream_sink log exposes the same shape).
type Snapshot struct {
	FramesProcessed    uint64
	AvgProcessingNanos  uint64
	SuccessIn, ErrorIn  uint64
	SuccessOut, ErrorOut uint64
	Keyframes           uint64
	BytesIn, BytesOut    uint64
	ConsecutiveErrors    uint64
}

func (s *Stats) recordDecode(ok bool, nanos int64, bytesConsumed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesProcessed++
	s.totalProcessingNs += uint64(nanos)
	s.bytesIn += uint64(bytesConsumed)
	if ok {
		s.successIn++
		s.consecutiveErrors = 0
	} else {
		s.errorIn++
		s.consecutiveErrors++
	}
}

func (s *Stats) recordEncode(ok bool, nanos int64, bytesProduced int, keyframe bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesProcessed++
	s.totalProcessingNs += uint64(nanos)
	if ok {
		s.successOut++
		s.consecutiveErrors = 0
		s.bytesOut += uint64(bytesProduced)
		if keyframe {
			s.keyframes++
		}
	} else {
		s.errorOut++
		s.consecutiveErrors++
	}
}

// ConsecutiveErrors reports the current run length of back-to-back
// failures, letting a caller decide to recreate the context above a
// configured threshold (§4.D leaves the threshold policy to the caller).
func (s *Stats) ConsecutiveErrors() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveErrors
}

// Snapshot returns a consistent point-in-time copy of all counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	avg := uint64(0)
	if s.framesProcessed > 0 {
		avg = s.totalProcessingNs / s.framesProcessed
	}
	return Snapshot{
		FramesProcessed:     s.framesProcessed,
		AvgProcessingNanos:  avg,
		SuccessIn:           s.successIn,
		ErrorIn:             s.errorIn,
		SuccessOut:          s.successOut,
		ErrorOut:            s.errorOut,
		Keyframes:           s.keyframes,
		BytesIn:             s.bytesIn,
		BytesOut:            s.bytesOut,
		ConsecutiveErrors:   s.consecutiveErrors,
	}
}
