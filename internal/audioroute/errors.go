package audioroute

import (
	"fmt"

	"github.com/tphakala/callctl/internal/errors"
)

// ComponentAudioRoute identifies route controller errors
const ComponentAudioRoute = "audioroute"

var (
	// ErrInvalidRoute is returned for a route outside earpiece, speaker, bluetooth and headphones
	ErrInvalidRoute = errors.New(errors.NewStd("invalid audio route")).
			Component(ComponentAudioRoute).
			Category(errors.CategoryValidation).
			Build()

	// ErrPlatformRejected matches every *PlatformRejectedError
	ErrPlatformRejected = errors.New(errors.NewStd("platform rejected route command")).
				Component(ComponentAudioRoute).
				Category(errors.CategoryPlatform).
				Build()
)

// PlatformRejectedError reports the route switch step whose hardware command failed.
type PlatformRejectedError struct {
	Step Step
	Err  error
}

func (e *PlatformRejectedError) Error() string {
	return fmt.Sprintf("platform rejected %s: %v", e.Step, e.Err)
}

func (e *PlatformRejectedError) Unwrap() error { return e.Err }

// Is matches ErrPlatformRejected.
func (e *PlatformRejectedError) Is(target error) bool {
	return target == ErrPlatformRejected
}

// ErrorCategory implements errors.CategorizedError.
func (e *PlatformRejectedError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryPlatform
}
