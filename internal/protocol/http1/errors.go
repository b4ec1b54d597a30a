package http1

import "errors"

// Malformed-input errors. Parse pairs each with a failure Outcome.
var (
	ErrMalformedRequestLine = errors.New("malformed request line")
	ErrMalformedContentLen  = errors.New("malformed content-length")
	ErrLineTooLong          = errors.New("line exceeds limit")
	ErrHeaderTooLarge       = errors.New("header block exceeds limit")
	ErrBodyTooLarge         = errors.New("body exceeds limit")
	ErrMissingBoundary      = errors.New("multipart content-type without boundary")
	ErrMalformedMultipart   = errors.New("malformed multipart body")
	ErrNoSink               = errors.New("no sink configured for file part")
)

// IsMalformed reports whether err is a client framing error rather than an
// I/O failure.
func IsMalformed(err error) bool {
	for _, target := range []error{
		ErrMalformedRequestLine, ErrMalformedContentLen, ErrLineTooLong,
		ErrHeaderTooLarge, ErrBodyTooLarge, ErrMissingBoundary, ErrMalformedMultipart,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
