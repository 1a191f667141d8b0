package upload

import (
	"time"

	"mediadrop/internal/config"
)

// Options holds the upload settings derived from config.
type Options struct {
	FilesDir          string
	MaxRetries        int
	RetryDelay        time.Duration
	DeleteAfterUpload bool
	CategoryDirs      bool
	Location          *time.Location
	ScanOnStart       bool
	NotifyUploads     bool
	NotifyErrors      bool
}

// OptionsFromConfig extracts upload settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FilesDir:          cfg.Paths.FilesDir,
		MaxRetries:        cfg.Upload.MaxRetries,
		RetryDelay:        cfg.RetryDelay(),
		DeleteAfterUpload: cfg.Upload.DeleteAfterUpload,
		CategoryDirs:      cfg.Upload.CategoryDirs,
		Location:          cfg.Location(),
		ScanOnStart:       cfg.Upload.ScanOnStart,
		NotifyUploads:     cfg.Notifications.Uploads,
		NotifyErrors:      cfg.Notifications.Errors,
	}
}
