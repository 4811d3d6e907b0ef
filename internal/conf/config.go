// conf/config.go settings structure and loading
package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/callctl/internal/errors"
)

// Settings is the complete read-only runtime configuration of callctl.
type Settings struct {
	Debug bool // true to enable debug mode

	Log       LogSettings
	Audio     AudioSettings
	Capture   CaptureSettings
	Sim       SimSettings
	Server    ServerSettings
	Metrics   MetricsSettings
	Telemetry TelemetrySettings
}

// LogSettings controls process logging.
type LogSettings struct {
	Level string // trace, debug, info, warn, error
	File  LogFileSettings
}

// LogFileSettings controls the optional rotating log file.
type LogFileSettings struct {
	Enabled    bool
	Path       string
	MaxSize    int // megabytes before rotation
	MaxBackups int
	MaxAge     int // days
}

// AudioSettings configures the route controller.
type AudioSettings struct {
	CommunicationMode bool   // issue set-communication-mode before every route switch
	InitialRoute      string // route applied at startup, empty for none
}

// CaptureSettings configures the capture session manager and the simulated grant dialog.
type CaptureSettings struct {
	Supported   bool
	GrantPolicy string        // manual, grant or deny
	GrantDelay  time.Duration // delay before the simulated dialog answers
}

// SimDevice describes one device the simulated platform enumerates.
type SimDevice struct {
	ID   int
	Type int // Android AudioDeviceInfo type code
	Name string
}

// SimSettings configures the simulated platform.
type SimSettings struct {
	Devices []SimDevice
}

// ServerSettings configures the bridge HTTP adapter.
type ServerSettings struct {
	Listen           string
	SubscriberBuffer int // per-subscriber event buffer
}

// MetricsSettings toggles the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool
}

// TelemetrySettings configures Sentry error reporting.
type TelemetrySettings struct {
	Enabled bool
	DSN     string
}

// New returns a viper instance with defaults and environment bindings applied.
func New() (*viper.Viper, error) {
	v := viper.New()
	setDefaultConfig(v)
	if err := configureEnvironmentVariables(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Load reads configFile (or searches the default paths when empty) into v and
// returns the validated settings. A missing config file is not an error; the
// defaults apply. Nothing is ever written back.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if err := readConfig(v, configFile); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_config").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error validating settings: %w", err)).
			Category(errors.CategoryConfiguration).
			Context("operation", "validate_config").
			Build()
	}

	return settings, nil
}

// readConfig reads the YAML config file into v.
func readConfig(v *viper.Viper, configFile string) error {
	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return errors.New(fmt.Errorf("error reading config file %s: %w", configFile, err)).
				Category(errors.CategoryConfiguration).
				Context("operation", "read_config").
				Build()
		}
		return nil
	}

	v.SetConfigName("config")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return nil
		}
		return errors.New(fmt.Errorf("fatal error reading config file: %w", err)).
			Category(errors.CategoryConfiguration).
			Context("operation", "read_config").
			Build()
	}
	return nil
}
