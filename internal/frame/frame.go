package frame

import (
	"time"

	"github.com/lanternops/streamnode/internal/errs"
)

// Frame is a rectangular image with a resizable backing buffer. Used` is the
// number of valid bytes currently written into Data; Allocated is the
// buffer's capacity. Stride is bytes-per-row of the dominant plane: for
// packed formats that means width*bytesPerPixel or more (padding allowed),
// for planar formats it is the luma plane's stride.
type Frame struct {
	Width     int
	Height    int
	Stride    int
	Format    Format
	Used      int
	Allocated int
	Data      []byte
	GrabTS    time.Time
}

// New constructs an empty frame carrying no storage.
func New() *Frame {
	return &Frame{}
}

// CloneMetaFrom copies every scalar field from src except Data, Used and
// Allocated, leaving the receiver's backing buffer untouched. This lets a
// destination frame inherit geometry/format/timestamp ahead of a converter
// call that will fill Data itself.
func (f *Frame) CloneMetaFrom(src *Frame) {
	f.Width = src.Width
	f.Height = src.Height
	f.Stride = src.Stride
	f.Format = src.Format
	f.GrabTS = src.GrabTS
}

// EnsureCapacity grows Data so that Allocated >= n, preserving the first
// Used bytes. It never shrinks an existing buffer. Growth is geometric
// (double, or exactly n if that's larger) to amortize repeated small
// appends from the same steady-state frame size.
func (f *Frame) EnsureCapacity(n int) error {
	if f.Allocated >= n {
		return nil
	}
	if n < 0 {
		return errs.New(errs.InvalidParam, "frame.EnsureCapacity", nil)
	}
	newCap := f.Allocated * 2
	if newCap < n {
		newCap = n
	}
	buf := make([]byte, newCap)
	copy(buf, f.Data[:f.Used])
	f.Data = buf
	f.Allocated = newCap
	return nil
}

// AppendBytes grows the frame as needed and copies n bytes from src into
// Data starting at the current Used offset, then advances Used by n.
// Fails with OutOfMemory if the required growth cannot be satisfied (src
// shorter than n is treated as InvalidParam, since that is a caller bug
// rather than a capacity problem).
func (f *Frame) AppendBytes(src []byte, n int) error {
	if n < 0 || n > len(src) {
		return errs.New(errs.InvalidParam, "frame.AppendBytes", nil)
	}
	required := f.Used + n
	if err := f.EnsureCapacity(required); err != nil {
		return errs.New(errs.OutOfMemory, "frame.AppendBytes", err)
	}
	copy(f.Data[f.Used:required], src[:n])
	f.Used = required
	return nil
}

// Reset zeroes Used so the frame's buffer can be reused for a new payload
// without reallocating, keeping geometry/format metadata intact.
func (f *Frame) Reset() {
	f.Used = 0
}

// Destroy releases the backing buffer. The Frame value itself is not freed;
// callers that pool Frame structs can reuse it after Destroy.
func (f *Frame) Destroy() {
	f.Data = nil
	f.Used = 0
	f.Allocated = 0
}
