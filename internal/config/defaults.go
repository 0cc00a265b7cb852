package config

const (
	defaultConfigPath     = "~/.config/datefixer/config.toml"
	defaultStateDir       = "~/.local/share/datefixer"
	defaultLogDir         = "~/.local/share/datefixer/logs"
	defaultArchiveFormat  = "auto"
	defaultExtractTimeout = 600
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults. Container and
// signature resolution are on, matching the tool's historical default.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			ScratchDir: defaultScratchDir(),
		},
		Strategies: Strategies{
			Container: true,
			Signature: true,
		},
		Archive: Archive{
			Format:         defaultArchiveFormat,
			ExtractTimeout: defaultExtractTimeout,
		},
		Walk: Walk{
			FileCreationTime: true,
		},
		Journal: Journal{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
