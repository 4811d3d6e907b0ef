package capture

import (
	"github.com/tphakala/callctl/internal/errors"
)

// ComponentCapture identifies capture session errors
const ComponentCapture = "capture"

var (
	// ErrUnsupported is returned when the platform has no screen-capture service
	ErrUnsupported = errors.New(errors.NewStd("screen capture is not supported on this device")).
			Component(ComponentCapture).
			Category(errors.CategoryUnsupported).
			Build()

	// ErrNotAuthorized is returned by Start without a valid, unconsumed grant
	ErrNotAuthorized = errors.New(errors.NewStd("screen capture permission not granted")).
				Component(ComponentCapture).
				Category(errors.CategoryAuthorization).
				Build()

	// ErrPlatformRejected is returned when the platform refuses a grant request or the capture resource
	ErrPlatformRejected = errors.New(errors.NewStd("platform rejected screen capture")).
				Component(ComponentCapture).
				Category(errors.CategoryPlatform).
				Build()
)
