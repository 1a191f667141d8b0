package notifications

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DownloadCompleted announces a finished retrieval.
func DownloadCompleted(taskID, url string, files int) Message {
	return Message{
		Title: "Download complete",
		Body:  fmt.Sprintf("%s\n%d file(s) moved to the holding directory\ntask %s", url, files, taskID),
		Tags:  []string{"mediadrop", "download", "completed"},
	}
}

// DownloadFailed announces a retrieval that ended in .fail.
func DownloadFailed(taskID, url string, err error) Message {
	detail := "unknown error"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	return Message{
		Title:    "Download failed",
		Body:     fmt.Sprintf("%s\n%s\ntask %s", url, detail, taskID),
		Tags:     []string{"mediadrop", "download", "error"},
		Priority: "high",
	}
}

// UploadCompleted reports size and throughput for a finished upload.
func UploadCompleted(remotePath string, size int64, elapsed time.Duration) Message {
	mb := float64(size) / (1024 * 1024)
	seconds := elapsed.Seconds()
	speed := 0.0
	if seconds > 0 {
		speed = mb / seconds
	}
	return Message{
		Title: fmt.Sprintf("Upload complete %.2f MB", mb),
		Body:  fmt.Sprintf("%s, took %.2f s, average %.2f MB/s", remotePath, seconds, speed),
		Tags:  []string{"mediadrop", "upload", "completed"},
	}
}

// UploadGaveUp reports an artifact whose retry budget is spent.
func UploadGaveUp(localPath string, attempts int, err error) Message {
	detail := ""
	if err != nil {
		detail = "\nlast error: " + strings.TrimSpace(err.Error())
	}
	return Message{
		Title:    "Upload failed",
		Body:     fmt.Sprintf("%s failed after %d attempts; the local copy was kept%s", filepath.Base(localPath), attempts, detail),
		Tags:     []string{"mediadrop", "upload", "error"},
		Priority: "high",
	}
}

// Test is sent by the test-notify command.
func Test() Message {
	return Message{
		Title:    "mediadrop test",
		Body:     "Notification system test",
		Tags:     []string{"mediadrop", "test"},
		Priority: "low",
	}
}
