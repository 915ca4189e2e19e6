package config

const (
	defaultDataDir              = "~/.local/share/ultidisk"
	defaultLogDir               = "~/.local/share/ultidisk/logs"
	defaultBaseURL              = "http://c64u"
	defaultDeviceTimeoutSeconds = 10
	defaultFTPPort              = 21
	defaultFTPUsername          = "anonymous"
	defaultFTPRoot              = "/"
	defaultFTPTimeoutSeconds    = 10
	defaultFTPMaxConns          = 3
	defaultFTPMaxRetries        = 3
	defaultScanWorkers          = 3
	defaultScanProgressMillis   = 120
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultNtfyRequestTimeout   = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Device: Device{
			BaseURL:        defaultBaseURL,
			TimeoutSeconds: defaultDeviceTimeoutSeconds,
		},
		FTP: FTP{
			Port:           defaultFTPPort,
			Username:       defaultFTPUsername,
			Root:           defaultFTPRoot,
			TimeoutSeconds: defaultFTPTimeoutSeconds,
			MaxConns:       defaultFTPMaxConns,
			MaxRetries:     defaultFTPMaxRetries,
		},
		Scan: Scan{
			Workers:            defaultScanWorkers,
			ProgressIntervalMs: defaultScanProgressMillis,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
	}
}
