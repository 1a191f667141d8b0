package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDownload(); err != nil {
		return err
	}
	if err := c.ResolveTimezone(); err != nil {
		return err
	}
	c.normalizeRemote()
	c.normalizeNotifications()
	c.normalizeLogging()
	return c.normalizeJournal()
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.URLsDir, err = expandPath(c.Paths.URLsDir); err != nil {
		return fmt.Errorf("paths.urls_dir: %w", err)
	}
	if c.Paths.TmpDir, err = expandPath(c.Paths.TmpDir); err != nil {
		return fmt.Errorf("paths.tmp_dir: %w", err)
	}
	if c.Paths.FilesDir, err = expandPath(c.Paths.FilesDir); err != nil {
		return fmt.Errorf("paths.files_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDownload() error {
	var err error
	c.Download.Binary = strings.TrimSpace(c.Download.Binary)
	if c.Download.Binary == "" {
		c.Download.Binary = defaultYTDLPBinary
	}
	if c.Download.VideoConfig, err = expandPath(strings.TrimSpace(c.Download.VideoConfig)); err != nil {
		return fmt.Errorf("download.video_config: %w", err)
	}
	if c.Download.AudioConfig, err = expandPath(strings.TrimSpace(c.Download.AudioConfig)); err != nil {
		return fmt.Errorf("download.audio_config: %w", err)
	}
	if strings.TrimSpace(c.Download.VideoOutputTemplate) == "" {
		c.Download.VideoOutputTemplate = defaultOutputTemplate
	}
	if strings.TrimSpace(c.Download.AudioOutputTemplate) == "" {
		c.Download.AudioOutputTemplate = c.Download.VideoOutputTemplate
	}
	if c.Download.SettleDelayMillis < 0 {
		c.Download.SettleDelayMillis = 0
	}
	return nil
}

// ResolveTimezone loads upload.timezone into the location used by Location.
func (c *Config) ResolveTimezone() error {
	name := strings.TrimSpace(c.Upload.Timezone)
	if name == "" {
		c.Upload.Timezone = ""
		c.location = time.Local
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("upload.timezone: %w", err)
	}
	c.Upload.Timezone = name
	c.location = loc
	return nil
}

func (c *Config) normalizeRemote() {
	if strings.TrimSpace(c.Remote.Video.URL) == "" {
		if value, ok := os.LookupEnv("MEDIADROP_WEBDAV_URL"); ok {
			c.Remote.Video.URL = value
		}
	}
	normalizeEndpoint(&c.Remote.Video)
	normalizeEndpoint(&c.Remote.Audio)
	if c.Remote.Video.Password == "" {
		if value, ok := os.LookupEnv("MEDIADROP_WEBDAV_PASSWORD"); ok {
			c.Remote.Video.Password = strings.TrimSpace(value)
		}
	}
}

func normalizeEndpoint(e *Endpoint) {
	e.URL = strings.TrimRight(strings.TrimSpace(e.URL), "/")
	e.Username = strings.TrimSpace(e.Username)
	e.Root = strings.TrimSpace(e.Root)
	if e.Root != "" {
		e.Root = "/" + strings.Trim(filepath.ToSlash(e.Root), "/")
		if e.Root == "/" {
			e.Root = ""
		}
	}
	if e.TimeoutSeconds <= 0 {
		e.TimeoutSeconds = defaultRemoteTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.Provider = strings.ToLower(strings.TrimSpace(c.Notifications.Provider))
	if c.Notifications.Provider == "" {
		c.Notifications.Provider = defaultNotifyProvider
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("MEDIADROP_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	c.Notifications.BarkDeviceKey = strings.TrimSpace(c.Notifications.BarkDeviceKey)
	if c.Notifications.BarkDeviceKey == "" {
		if value, ok := os.LookupEnv("MEDIADROP_BARK_DEVICE_KEY"); ok {
			c.Notifications.BarkDeviceKey = strings.TrimSpace(value)
		}
	}
	c.Notifications.BarkServer = strings.TrimRight(strings.TrimSpace(c.Notifications.BarkServer), "/")
	if c.Notifications.BarkServer == "" {
		c.Notifications.BarkServer = defaultBarkServer
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeJournal() error {
	path := strings.TrimSpace(c.Journal.Path)
	if path == "" {
		c.Journal.Path = filepath.Join(c.Paths.LogDir, defaultJournalRelativePath)
		return nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	c.Journal.Path = expanded
	return nil
}
