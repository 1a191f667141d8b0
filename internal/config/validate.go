package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	named := map[string]string{
		"paths.urls_dir":  c.Paths.URLsDir,
		"paths.tmp_dir":   c.Paths.TmpDir,
		"paths.files_dir": c.Paths.FilesDir,
		"paths.log_dir":   c.Paths.LogDir,
	}
	for key, value := range named {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	seen := make(map[string]string, len(named))
	for _, key := range []string{"paths.urls_dir", "paths.tmp_dir", "paths.files_dir"} {
		value := named[key]
		if other, ok := seen[value]; ok {
			return fmt.Errorf("%s and %s must be different directories", other, key)
		}
		seen[value] = key
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.MaxWorkers <= 0 {
		return errors.New("download.max_workers must be positive")
	}
	if strings.ContainsAny(c.Download.VideoOutputTemplate, `/\`) || strings.ContainsAny(c.Download.AudioOutputTemplate, `/\`) {
		return errors.New("download output templates must not contain path separators")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.MaxRetries <= 0 {
		return errors.New("upload.max_retries must be positive")
	}
	if c.Upload.RetryDelaySeconds <= 0 {
		return errors.New("upload.retry_delay_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRemote() error {
	if !c.Upload.Enabled {
		return nil
	}
	if !c.Remote.Video.Configured() {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("remote.video.url is required when upload.enabled is true; edit %s (create with 'mediadrop config init')", defaultPath)
	}
	for key, endpoint := range map[string]Endpoint{"remote.video": c.Remote.Video, "remote.audio": c.Remote.Audio} {
		if !endpoint.Configured() {
			continue
		}
		parsed, err := url.Parse(endpoint.URL)
		if err != nil {
			return fmt.Errorf("%s.url: %w", key, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("%s.url must use http or https", key)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	switch c.Notifications.Provider {
	case "ntfy", "bark", "none":
		return nil
	default:
		return fmt.Errorf("notifications.provider: unsupported value %q", c.Notifications.Provider)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
