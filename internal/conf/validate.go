// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"strings"
)

// Grant policies of the simulated screen-capture dialog.
const (
	GrantPolicyManual = "manual" // wait for POST /api/v1/sim/grant
	GrantPolicyGrant  = "grant"
	GrantPolicyDeny   = "deny"
)

var validRoutes = []string{"earpiece", "speaker", "bluetooth", "headphones"}

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateLogSettings(&settings.Log); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateAudioSettings(&settings.Audio); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateCaptureSettings(&settings.Capture); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateSimSettings(&settings.Sim); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateServerSettings(&settings.Server); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if settings.Telemetry.Enabled && settings.Telemetry.DSN == "" {
		ve.Errors = append(ve.Errors, "telemetry is enabled but no DSN is configured")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateLogSettings(settings *LogSettings) error {
	switch strings.ToLower(settings.Level) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", settings.Level)
	}
	if settings.File.Enabled && settings.File.Path == "" {
		return fmt.Errorf("log file is enabled but no path is set")
	}
	return nil
}

func validateAudioSettings(settings *AudioSettings) error {
	route := strings.ToLower(strings.TrimSpace(settings.InitialRoute))
	if route == "" {
		return nil
	}
	for _, valid := range validRoutes {
		if route == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid initial route %q, must be one of %v", settings.InitialRoute, validRoutes)
}

func validateCaptureSettings(settings *CaptureSettings) error {
	if !isGrantPolicy(settings.GrantPolicy) {
		return fmt.Errorf("invalid grant policy %q", settings.GrantPolicy)
	}
	if settings.GrantDelay < 0 {
		return fmt.Errorf("grant delay must not be negative")
	}
	return nil
}

func validateSimSettings(settings *SimSettings) error {
	seen := make(map[int]bool, len(settings.Devices))
	for _, dev := range settings.Devices {
		if seen[dev.ID] {
			return fmt.Errorf("duplicate simulated device id %d", dev.ID)
		}
		seen[dev.ID] = true
	}
	return nil
}

func validateServerSettings(settings *ServerSettings) error {
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("invalid server listen address %q: %w", settings.Listen, err)
	}
	if settings.SubscriberBuffer <= 0 {
		return fmt.Errorf("server subscriber buffer must be positive")
	}
	return nil
}

func isGrantPolicy(policy string) bool {
	switch policy {
	case GrantPolicyManual, GrantPolicyGrant, GrantPolicyDeny:
		return true
	}
	return false
}
