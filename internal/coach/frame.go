package coach

import (
	"context"
	"strings"
)

// FrameSource yields screen snapshots on demand. TakeSnapshot returns nil
// when capture is inactive, no frame has arrived yet, or the newest frame is
// visually indistinguishable from the last one handed out.
type FrameSource interface {
	StartCapture(ctx context.Context) error
	StopCapture()
	TakeSnapshot() []byte
}

type CaptureErrorKind string

const (
	CapturePermissionDenied CaptureErrorKind = "PermissionDenied"
	CaptureNoSource         CaptureErrorKind = "NoSource"
	CaptureDeviceUnreadable CaptureErrorKind = "DeviceUnreadable"
	CaptureCancelled        CaptureErrorKind = "Cancelled"
	CaptureUnknown          CaptureErrorKind = "Unknown"
)

var captureMessages = map[CaptureErrorKind]string{
	CapturePermissionDenied: "Permission denied. You must grant screen recording permissions.",
	CaptureNoSource:         "No screen video source found.",
	CaptureDeviceUnreadable: "Screen source could not be read. Try sharing a different window or screen.",
	CaptureCancelled:        "Screen sharing was cancelled.",
	CaptureUnknown:          "Failed to share screen. Please try again.",
}

// CaptureError is a failure to start screen capture. Message is surfaced to
// the user verbatim.
type CaptureError struct {
	Kind    CaptureErrorKind
	Message string
}

func NewCaptureError(kind CaptureErrorKind, message string) *CaptureError {
	kind = ParseCaptureErrorKind(string(kind))
	if strings.TrimSpace(message) == "" {
		message = captureMessages[kind]
	}
	return &CaptureError{Kind: kind, Message: message}
}

func (e *CaptureError) Error() string { return e.Message }

// ParseCaptureErrorKind accepts both kind names and browser DOMException names.
func ParseCaptureErrorKind(s string) CaptureErrorKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "permissiondenied", "notallowederror", "securityerror":
		return CapturePermissionDenied
	case "nosource", "notfounderror", "overconstrainederror":
		return CaptureNoSource
	case "deviceunreadable", "notreadableerror":
		return CaptureDeviceUnreadable
	case "cancelled", "canceled", "aborterror":
		return CaptureCancelled
	default:
		return CaptureUnknown
	}
}
