//go:build !cgo

package jpegdec

import "errors"

// noCgoBackend is selected when the build has cgo disabled (CGO_ENABLED=0).
// libjpeg-turbo cannot be linked in that configuration, so decode calls fail
// with a clear cause rather than silently producing garbage output.
type noCgoBackend struct{}

func newBackend() backend { return noCgoBackend{} }

func (noCgoBackend) decode(src []byte, headerOnly bool) (result, error) {
	return result{}, errors.New("jpegdec: built without cgo, libjpeg-turbo unavailable")
}
