package upload_test

import (
	"testing"
	"time"

	"mediadrop/internal/queue"
	"mediadrop/internal/upload"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		kind queue.Kind
		ok   bool
	}{
		{"clip.mp4", queue.KindVideo, true},
		{"clip.MKV", queue.KindVideo, true},
		{"clip.webm", queue.KindVideo, true},
		{"clip.mov", queue.KindVideo, true},
		{"song.mp3", queue.KindAudio, true},
		{"song.m4a", queue.KindAudio, true},
		{"song.opus", queue.KindAudio, true},
		{"song.FLAC", queue.KindAudio, true},
		{"cover.jpg", "", false},
		{"clip.mp4.part", "", false},
		{"noext", "", false},
	}
	for _, tc := range tests {
		kind, ok := upload.Classify(tc.name)
		if ok != tc.ok || kind != tc.kind {
			t.Errorf("Classify(%q) = %q, %v; want %q, %v", tc.name, kind, ok, tc.kind, tc.ok)
		}
	}
}

func TestRemotePath(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Fatal(err)
	}
	// 2024-06-01 20:30 UTC is already June 2nd in Shanghai.
	at := time.Date(2024, 6, 1, 20, 30, 0, 0, time.UTC)

	tests := []struct {
		name         string
		root         string
		kind         queue.Kind
		file         string
		categoryDirs bool
		want         string
	}{
		{"flat", "/media", queue.KindVideo, "clip.mp4", false, "/media/20240602/clip.mp4"},
		{"category", "/media", queue.KindAudio, "weird:name*.mp3", true, "/media/Audio/20240602/weird_name_.mp3"},
		{"video category", "/media", queue.KindVideo, "clip.mp4", true, "/media/Video/20240602/clip.mp4"},
		{"server root", "", queue.KindVideo, "a|b.mkv", false, "/20240602/a_b.mkv"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := upload.RemotePath(tc.root, tc.kind, tc.file, at, shanghai, tc.categoryDirs)
			if got != tc.want {
				t.Fatalf("RemotePath = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCategoryDir(t *testing.T) {
	if got := upload.CategoryDir(queue.KindVideo); got != "Video" {
		t.Fatalf("unexpected video category %q", got)
	}
	if got := upload.CategoryDir(queue.KindAudio); got != "Audio" {
		t.Fatalf("unexpected audio category %q", got)
	}
}
