package config

const (
	defaultDataDir          = "~/.local/share/reflow"
	defaultLogDir           = "~/.local/share/reflow/logs"
	defaultAPIBind          = "127.0.0.1:8235"
	defaultAutosaveInterval = 30
	minAutosaveInterval     = 5
	defaultMaxUploadMB      = 64
	defaultHeartbeatSeconds = 15
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Store: Store{
			AutosaveInterval: defaultAutosaveInterval,
			MaxUploadMB:      defaultMaxUploadMB,
		},
		Events: Events{
			HeartbeatSeconds: defaultHeartbeatSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
