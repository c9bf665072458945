// Package capture drives a V4L2 video capture device: format negotiation,
// mmap buffer mapping, and the open/poll/release pump loop the rest of the
// pipeline consumes (§6's "capture source" external interface).
package capture

import "github.com/lanternops/streamnode/internal/frame"

// BufferDescriptor describes one of the device's mapped buffers as reported
// at Open. Raw points at the same *frame.Frame every Poll call for this
// index reuses — its Data is the buffer's mmap'd memory, and Used/GrabTS
// are refreshed on each successful dequeue.
type BufferDescriptor struct {
	Index int
	DMAFd int // -1 when the device/driver doesn't support DMABUF export
	Raw   *frame.Frame
}

// CaptureState is the negotiated device geometry and buffer pool reported
// once at Open; it does not change for the lifetime of an open capture.
type CaptureState struct {
	Width, Height uint32
	Hz            uint32
	Format        frame.Format
	NBufs         int
	Buffers       []BufferDescriptor
}
