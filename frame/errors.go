package frame

import "errors"

// The three error kinds the frame layer ever surfaces across the
// collaborator boundary (§7): a parse/semantic violation, an
// allocation failure, and an unsupported (out-of-range) frame type.
// Every wrapped error returned by a decoder or encoder satisfies
// errors.Is against exactly one of these.
var (
	ErrInvalidFrame     = errors.New("frame: invalid frame")
	ErrNoMemory         = errors.New("frame: allocation failed")
	ErrUnsupportedFrame = errors.New("frame: unsupported frame type")
)
