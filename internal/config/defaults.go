package config

const (
	defaultPresetsFile = "~/.config/ffbatch/presets.json"
	defaultLogDir      = "~/.local/share/ffbatch/logs"
	defaultHistoryPath = "~/.local/share/ffbatch/history.db"
	defaultLogFormat   = "console"
	defaultLogLevel    = "info"
	defaultMinFreeMiB  = 512
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Presets: Presets{
			File: defaultPresetsFile,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			Dir:    defaultLogDir,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
		Preflight: Preflight{
			MinFreeMiB: defaultMinFreeMiB,
		},
	}
}
