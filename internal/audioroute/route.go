// Package audioroute sequences the hardware commands that move call audio
// between earpiece, speaker, Bluetooth and wired headphones.
package audioroute

import (
	"fmt"
	"strings"

	"github.com/tphakala/callctl/internal/errors"
)

// Route is the single audio output path of a call.
type Route int

const (
	RouteUnset Route = iota
	RouteEarpiece
	RouteSpeaker
	RouteBluetooth
	RouteHeadphones
)

func (r Route) String() string {
	switch r {
	case RouteEarpiece:
		return "earpiece"
	case RouteSpeaker:
		return "speaker"
	case RouteBluetooth:
		return "bluetooth"
	case RouteHeadphones:
		return "headphones"
	case RouteUnset:
		return "unset"
	default:
		return fmt.Sprintf("route(%d)", int(r))
	}
}

// Valid reports whether r can be requested from SetRoute.
func (r Route) Valid() bool {
	return r >= RouteEarpiece && r <= RouteHeadphones
}

// ParseRoute parses a route name as sent by the UI bridge.
func ParseRoute(name string) (Route, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "earpiece":
		return RouteEarpiece, nil
	case "speaker":
		return RouteSpeaker, nil
	case "bluetooth":
		return RouteBluetooth, nil
	case "headphones":
		return RouteHeadphones, nil
	}
	return RouteUnset, errors.New(fmt.Errorf("%w: %q", ErrInvalidRoute, name)).
		Component(ComponentAudioRoute).
		Category(errors.CategoryValidation).
		Context("route", name).
		Build()
}

// State is the route controller's view of the output path.
type State struct {
	ActiveRoute           Route
	BluetoothScoRequested bool
}

// Step identifies one hardware command in a route switch.
type Step int

const (
	StepCommunicationMode Step = iota
	StepTeardownSco
	StepSpeakerphone
	StepEnableSco
)

func (s Step) String() string {
	switch s {
	case StepCommunicationMode:
		return "communicationMode"
	case StepTeardownSco:
		return "teardownSco"
	case StepSpeakerphone:
		return "speakerphone"
	case StepEnableSco:
		return "enableSco"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}
