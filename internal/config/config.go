package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directories shared with the front end and operators.
type Paths struct {
	URLsDir  string `toml:"urls_dir"`
	TmpDir   string `toml:"tmp_dir"`
	FilesDir string `toml:"files_dir"`
	LogDir   string `toml:"log_dir"`
}

// Download contains configuration for the download orchestrator.
type Download struct {
	MaxWorkers          int    `toml:"max_workers"`
	SettleDelayMillis   int    `toml:"settle_delay_ms"`
	Binary              string `toml:"binary"`
	VideoConfig         string `toml:"video_config"`
	AudioConfig         string `toml:"audio_config"`
	VideoOutputTemplate string `toml:"video_output_template"`
	AudioOutputTemplate string `toml:"audio_output_template"`
	ScanOnStart         bool   `toml:"scan_on_start"`
}

// Upload contains configuration for the upload pipeline and holding directory policy.
type Upload struct {
	Enabled           bool   `toml:"enabled"`
	MaxRetries        int    `toml:"max_retries"`
	RetryDelaySeconds int    `toml:"retry_delay_seconds"`
	DeleteAfterUpload bool   `toml:"delete_after_upload"`
	ExpireDays        int    `toml:"expire_days"`
	CategoryDirs      bool   `toml:"category_dirs"`
	Timezone          string `toml:"timezone"`
	ScanOnStart       bool   `toml:"scan_on_start"`
}

// Endpoint describes one remote WebDAV account.
type Endpoint struct {
	URL            string `toml:"url"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	Root           string `toml:"root"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Configured reports whether the endpoint has a URL.
func (e Endpoint) Configured() bool {
	return strings.TrimSpace(e.URL) != ""
}

// Remote holds the per-media-kind endpoints. Audio falls back to Video when unset.
type Remote struct {
	Video Endpoint `toml:"video"`
	Audio Endpoint `toml:"audio"`
}

// Notifications contains configuration for push notifications.
type Notifications struct {
	Provider       string `toml:"provider"`
	NtfyTopic      string `toml:"ntfy_topic"`
	BarkServer     string `toml:"bark_server"`
	BarkDeviceKey  string `toml:"bark_device_key"`
	RequestTimeout int    `toml:"request_timeout"`
	Downloads      bool   `toml:"downloads"`
	Uploads        bool   `toml:"uploads"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Journal contains configuration for the SQLite event journal.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config encapsulates all configuration values for mediadrop.
//
// Configuration sections by subsystem:
//   - Paths: task descriptor, scratch, holding, and log directories
//   - Download: yt-dlp invocation and worker pool sizing
//   - Upload: retry budget, retention policy, and remote path layout
//   - Remote: WebDAV endpoints per media kind
//   - Notifications: ntfy or Bark push settings
//   - Logging: log format, level, and retention
//   - Journal: SQLite event history
type Config struct {
	Paths         Paths         `toml:"paths"`
	Download      Download      `toml:"download"`
	Upload        Upload        `toml:"upload"`
	Remote        Remote        `toml:"remote"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Journal       Journal       `toml:"journal"`

	location *time.Location
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediadrop.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon reads and writes.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.URLsDir, c.Paths.TmpDir, c.Paths.FilesDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Journal.Enabled && strings.TrimSpace(c.Journal.Path) != "" {
		if err := os.MkdirAll(filepath.Dir(c.Journal.Path), 0o755); err != nil {
			return fmt.Errorf("create journal directory: %w", err)
		}
	}
	return nil
}

// Location returns the timezone used for date partitions and log timestamps.
func (c *Config) Location() *time.Location {
	if c == nil || c.location == nil {
		return time.Local
	}
	return c.location
}

// SettleDelay returns the pause between detecting a descriptor and reading it.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Download.SettleDelayMillis) * time.Millisecond
}

// RetryDelay returns the fixed delay between upload attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Upload.RetryDelaySeconds) * time.Second
}

// AudioEndpoint returns the endpoint used for audio uploads, falling back to the
// video endpoint when no dedicated audio account is configured.
func (c *Config) AudioEndpoint() (Endpoint, bool) {
	if c.Remote.Audio.Configured() {
		return c.Remote.Audio, true
	}
	return c.Remote.Video, false
}

// YTDLPBinary returns the retrieval tool executable name.
func (c *Config) YTDLPBinary() string {
	if strings.TrimSpace(c.Download.Binary) == "" {
		return defaultYTDLPBinary
	}
	return c.Download.Binary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
