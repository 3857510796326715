package codec

import (
	"errors"
	"fmt"
)

// Static errors for session misuse and the JPEG path.
var (
	// ErrSessionClosed is returned when a closed session is used.
	ErrSessionClosed = errors.New("codec session is closed")
	// ErrWrongDirection is returned when a decoder is asked to encode or the reverse.
	ErrWrongDirection = errors.New("codec session direction mismatch")
	// ErrMediaTypeMismatch is returned when a frame does not match the session's media type.
	ErrMediaTypeMismatch = errors.New("frame media type does not match codec")
)

// errAgain and errEOF are the two non-fatal native outcomes. They never leave
// this package.
var (
	errAgain = errors.New("resource temporarily unavailable")
	errEOF   = errors.New("end of stream")
)

// NativeError is a negative return code from FFmpeg.
type NativeError struct {
	Code    int
	Message string
}

func (e *NativeError) Error() string {
	return fmt.Sprintf("ffmpeg error %d: %s", e.Code, e.Message)
}

// NativeCode returns the FFmpeg return code carried anywhere in err's chain.
func NativeCode(err error) (int, bool) {
	var ne *NativeError
	if errors.As(err, &ne) {
		return ne.Code, true
	}
	return 0, false
}

// CodecNotFoundError is returned when no codec is registered for a request.
type CodecNotFoundError struct {
	ID        CodecID
	Name      string
	Direction Direction
}

func (e *CodecNotFoundError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ID.String()
	}
	return fmt.Sprintf("codec not found: no %s for %q", e.Direction, name)
}

// ConfigurationError is returned when a parameter set is rejected at open time.
type ConfigurationError struct {
	Codec  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("codec %s: configuration rejected: %s: %v", e.Codec, e.Reason, e.Err)
	}
	return fmt.Sprintf("codec %s: configuration rejected: %s", e.Codec, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// DecodeError is a hard failure while pushing a packet or pulling a frame.
type DecodeError struct {
	Codec string
	Op    string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec %s: decode: %s: %v", e.Codec, e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError is a hard failure while pushing a frame or pulling a packet.
type EncodeError struct {
	Codec string
	Op    string
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("codec %s: encode: %s: %v", e.Codec, e.Op, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// AllocationError is returned when FFmpeg cannot allocate a context or buffer.
type AllocationError struct {
	What string
	Err  error
}

func (e *AllocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("allocate %s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("allocate %s failed", e.What)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}
