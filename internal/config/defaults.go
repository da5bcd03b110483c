package config

const (
	defaultConfigPath      = "~/.config/dlpanel/config.toml"
	projectConfigName      = "dlpanel.toml"
	defaultAPIBaseURL      = "http://127.0.0.1:8000"
	defaultRequestTimeout  = 15
	defaultEventsPath      = "/api/events"
	defaultReconnectDelay  = 3
	defaultStateDir        = "~/.local/share/dlpanel"
	defaultLogDir          = "~/.local/share/dlpanel/logs"
	defaultRefreshInterval = 10
	defaultLogCapacity     = 400
	defaultWatchSort       = SortNextCheck
	defaultSoonWindowHours = 24
	defaultAiringDays      = 7
	defaultAiringLimit     = 50
	defaultEnqueueLang     = "vostfr"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"

	// SortNextCheck orders subscriptions by their next scheduled check.
	SortNextCheck = "next_check"
	// SortLabel orders subscriptions alphabetically.
	SortLabel = "label"

	envAPIURL   = "DLPANEL_API_URL"
	envLogLevel = "DLPANEL_LOG_LEVEL"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		API: API{
			BaseURL:        defaultAPIBaseURL,
			RequestTimeout: defaultRequestTimeout,
			EventsPath:     defaultEventsPath,
			ReconnectDelay: defaultReconnectDelay,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Watch: Watch{
			RefreshInterval: defaultRefreshInterval,
			LogCapacity:     defaultLogCapacity,
			Sort:            defaultWatchSort,
		},
		Schedule: Schedule{
			SoonWindowHours: defaultSoonWindowHours,
			AiringDays:      defaultAiringDays,
			AiringLimit:     defaultAiringLimit,
		},
		Enqueue: Enqueue{
			Lang: defaultEnqueueLang,
		},
		Cache: Cache{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
