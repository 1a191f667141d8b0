package config

const (
	defaultConfigPath          = "~/.config/mediadrop/config.toml"
	defaultURLsDir             = "~/.local/share/mediadrop/urls"
	defaultTmpDir              = "~/.local/share/mediadrop/tmp"
	defaultFilesDir            = "~/.local/share/mediadrop/files"
	defaultLogDir              = "~/.local/share/mediadrop/logs"
	defaultMaxWorkers          = 4
	defaultSettleDelayMillis   = 500
	defaultYTDLPBinary         = "yt-dlp"
	defaultVideoConfig         = "~/.config/mediadrop/yt-dlp.conf"
	defaultAudioConfig         = "~/.config/mediadrop/yta-dlp.conf"
	defaultOutputTemplate      = "%(title.0:20)s-%(id)s.%(ext)s"
	defaultUploadMaxRetries    = 3
	defaultUploadRetryDelay    = 60
	defaultTimezone            = "Asia/Shanghai"
	defaultRemoteTimeout       = 300
	defaultNotifyProvider      = "ntfy"
	defaultBarkServer          = "https://api.day.app"
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
	defaultJournalRelativePath = "journal.db"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			URLsDir:  defaultURLsDir,
			TmpDir:   defaultTmpDir,
			FilesDir: defaultFilesDir,
			LogDir:   defaultLogDir,
		},
		Download: Download{
			MaxWorkers:          defaultMaxWorkers,
			SettleDelayMillis:   defaultSettleDelayMillis,
			Binary:              defaultYTDLPBinary,
			VideoConfig:         defaultVideoConfig,
			AudioConfig:         defaultAudioConfig,
			VideoOutputTemplate: defaultOutputTemplate,
			AudioOutputTemplate: defaultOutputTemplate,
			ScanOnStart:         true,
		},
		Upload: Upload{
			Enabled:           true,
			MaxRetries:        defaultUploadMaxRetries,
			RetryDelaySeconds: defaultUploadRetryDelay,
			DeleteAfterUpload: true,
			Timezone:          defaultTimezone,
			ScanOnStart:       true,
		},
		Remote: Remote{
			Video: Endpoint{TimeoutSeconds: defaultRemoteTimeout},
			Audio: Endpoint{TimeoutSeconds: defaultRemoteTimeout},
		},
		Notifications: Notifications{
			Provider:       defaultNotifyProvider,
			BarkServer:     defaultBarkServer,
			RequestTimeout: defaultNotifyTimeout,
			Uploads:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Journal: Journal{
			Enabled: true,
		},
	}
}
