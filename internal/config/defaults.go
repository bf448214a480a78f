package config

const (
	defaultDataDir              = "~/.local/share/vidpipe/data"
	defaultLogDir               = "~/.local/share/vidpipe/logs"
	defaultRequestTimeout       = 30
	defaultTranscodeEngine      = "ffmpeg"
	defaultFFmpegBinary         = "ffmpeg"
	defaultTranscodePreset      = "medium"
	defaultCacheEntries         = 5
	defaultNotifyRequestTimeout = 10
	defaultProgressPerMinute    = 12
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Endpoints: Endpoints{
			RequestTimeout: defaultRequestTimeout,
		},
		Transcode: Transcode{
			Engine:       defaultTranscodeEngine,
			FFmpegBinary: defaultFFmpegBinary,
			Preset:       defaultTranscodePreset,
			CacheEntries: defaultCacheEntries,
		},
		Notifications: Notifications{
			RequestTimeout:    defaultNotifyRequestTimeout,
			Progress:          true,
			Completions:       true,
			Errors:            true,
			ProgressPerMinute: defaultProgressPerMinute,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
