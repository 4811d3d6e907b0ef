// env.go - Environment variable configuration and validation for callctl
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/callctl/internal/errors"
)

// EnvPrefix prefixes every environment override, e.g. CALLCTL_SERVER_LISTEN.
const EnvPrefix = "CALLCTL"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the environment variable bindings that carry validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "CALLCTL_DEBUG", validateEnvBool},
		{"log.level", "CALLCTL_LOG_LEVEL", nil},
		{"audio.communicationmode", "CALLCTL_AUDIO_COMMUNICATIONMODE", validateEnvBool},
		{"audio.initialroute", "CALLCTL_AUDIO_INITIALROUTE", nil},
		{"capture.supported", "CALLCTL_CAPTURE_SUPPORTED", validateEnvBool},
		{"capture.grantpolicy", "CALLCTL_CAPTURE_GRANTPOLICY", validateEnvGrantPolicy},
		{"capture.grantdelay", "CALLCTL_CAPTURE_GRANTDELAY", validateEnvDuration},
		{"server.listen", "CALLCTL_SERVER_LISTEN", nil},
		{"server.subscriberbuffer", "CALLCTL_SERVER_SUBSCRIBERBUFFER", validateEnvPositiveInt},
		{"metrics.enabled", "CALLCTL_METRICS_ENABLED", validateEnvBool},
		{"telemetry.enabled", "CALLCTL_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.dsn", "CALLCTL_TELEMETRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var problems []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if value, ok := os.LookupEnv(binding.EnvVar); ok {
			if err := binding.Validate(value); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", binding.EnvVar, err))
			}
		}
	}

	if len(problems) > 0 {
		return errors.Newf("invalid environment configuration: %s", strings.Join(problems, "; ")).
			Category(errors.CategoryConfiguration).
			Context("operation", "bind_env").
			Build()
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value %q", value)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value)
	}
	if d < 0 {
		return fmt.Errorf("duration must not be negative: %s", value)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive integer, got %q", value)
	}
	return nil
}

func validateEnvGrantPolicy(value string) error {
	if !isGrantPolicy(value) {
		return fmt.Errorf("unknown grant policy %q", value)
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return bindEnvVars(v)
}
