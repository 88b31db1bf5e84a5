package practice

import (
	"context"
	"errors"
	"fmt"
)

// Cause classifies why the microphone could not be acquired.
type Cause string

const (
	CauseDenied   Cause = "denied"
	CauseNotFound Cause = "not_found"
	CauseOther    Cause = "other"
)

// ParseCause maps a reported cause onto a known Cause.
func ParseCause(s string) Cause {
	switch Cause(s) {
	case CauseDenied, "permission_denied", "NotAllowedError":
		return CauseDenied
	case CauseNotFound, "not-found", "NotFoundError":
		return CauseNotFound
	default:
		return CauseOther
	}
}

// CaptureError is returned when the microphone cannot be acquired.
type CaptureError struct {
	Cause Cause
	Err   error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("microphone %s: %v", e.Cause, e.Err)
	}
	return fmt.Sprintf("microphone %s", e.Cause)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Message returns the user-facing message for the failure cause.
func (e *CaptureError) Message() string {
	switch e.Cause {
	case CauseDenied:
		return "麦克风权限被拒绝，请在浏览器设置中允许访问麦克风"
	case CauseNotFound:
		return "未检测到麦克风设备，请连接麦克风后重试"
	default:
		return "无法访问麦克风，请检查设备后重试"
	}
}

// AsCaptureError converts err into a CaptureError, classifying unknown errors as CauseOther.
func AsCaptureError(err error) *CaptureError {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce
	}
	return &CaptureError{Cause: CauseOther, Err: err}
}

// Stream is an acquired microphone. Frames are delivered on Frames until the
// stream is closed or the device goes away.
type Stream interface {
	Frames() <-chan []byte
	// Close releases the device. Safe to call more than once.
	Close() error
}

// Microphone acquires exclusive audio capture.
type Microphone interface {
	Acquire(ctx context.Context) (Stream, error)
}
