package download

import (
	"time"

	"mediadrop/internal/config"
	"mediadrop/internal/queue"
)

// Options holds the orchestrator settings derived from config.
type Options struct {
	URLsDir       string
	TmpDir        string
	FilesDir      string
	LogDir        string
	MaxWorkers    int
	SettleDelay   time.Duration
	VideoConfig   string
	AudioConfig   string
	VideoTemplate string
	AudioTemplate string
	ScanOnStart   bool
	NotifySuccess bool
	NotifyErrors  bool
}

// OptionsFromConfig extracts orchestrator settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		URLsDir:       cfg.Paths.URLsDir,
		TmpDir:        cfg.Paths.TmpDir,
		FilesDir:      cfg.Paths.FilesDir,
		LogDir:        cfg.Paths.LogDir,
		MaxWorkers:    cfg.Download.MaxWorkers,
		SettleDelay:   cfg.SettleDelay(),
		VideoConfig:   cfg.Download.VideoConfig,
		AudioConfig:   cfg.Download.AudioConfig,
		VideoTemplate: cfg.Download.VideoOutputTemplate,
		AudioTemplate: cfg.Download.AudioOutputTemplate,
		ScanOnStart:   cfg.Download.ScanOnStart,
		NotifySuccess: cfg.Notifications.Downloads,
		NotifyErrors:  cfg.Notifications.Errors,
	}
}

func (o Options) configFor(kind queue.Kind) string {
	if kind == queue.KindAudio {
		return o.AudioConfig
	}
	return o.VideoConfig
}

func (o Options) templateFor(kind queue.Kind) string {
	if kind == queue.KindAudio {
		return o.AudioTemplate
	}
	return o.VideoTemplate
}
