package journal

import "time"

// EventType names a pipeline outcome.
type EventType string

const (
	EventClaimed            EventType = "claimed"
	EventDownloaded         EventType = "downloaded"
	EventDownloadFailed     EventType = "download_failed"
	EventUploaded           EventType = "uploaded"
	EventSkippedExisting    EventType = "skipped_existing"
	EventUploadFailed       EventType = "upload_failed"
	EventGaveUp             EventType = "gave_up"
	EventDeletedUnsupported EventType = "deleted_unsupported"
	EventExpired            EventType = "expired"
)

// Event is one journal row.
type Event struct {
	ID         int64
	CreatedAt  time.Time
	Type       EventType
	TaskID     string
	Path       string
	RemotePath string
	Detail     string
	Attempt    int
	Bytes      int64
}

// Filter narrows Recent queries. Zero values match everything.
type Filter struct {
	TaskID string
	Type   EventType
	Limit  int
}
