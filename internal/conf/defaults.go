// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultListen is the default bridge API address.
const DefaultListen = "127.0.0.1:8787"

// Default device set of the simulated platform: a phone with earpiece and speaker.
var defaultSimDevices = []map[string]any{
	{"id": 1, "type": 1, "name": "Earpiece"},
	{"id": 2, "type": 2, "name": "Speaker"},
}

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "logs/callctl.log")
	v.SetDefault("log.file.maxsize", 100)
	v.SetDefault("log.file.maxbackups", 3)
	v.SetDefault("log.file.maxage", 28)

	v.SetDefault("audio.communicationmode", true)
	v.SetDefault("audio.initialroute", "")

	v.SetDefault("capture.supported", true)
	v.SetDefault("capture.grantpolicy", GrantPolicyManual)
	v.SetDefault("capture.grantdelay", 250*time.Millisecond)

	v.SetDefault("sim.devices", defaultSimDevices)

	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("server.subscriberbuffer", 64)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")
}
