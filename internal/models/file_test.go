// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestFileIsImage(t *testing.T) {
	tests := []struct {
		name string
		file File
		want bool
	}{
		{name: "image type", file: File{FileType: FileTypeImage}, want: true},
		{name: "image mime only", file: File{FileType: FileTypeOther, MimeType: "image/x-icon"}, want: true},
		{name: "pdf", file: File{FileType: FileTypePDF, MimeType: "application/pdf"}, want: false},
		{name: "video", file: File{FileType: FileTypeVideo, MimeType: "video/mp4"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.file.IsImage(); got != tt.want {
				t.Errorf("IsImage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFileIsOrphaned(t *testing.T) {
	articleID := uuid.New()
	paperID := uuid.New()

	tests := []struct {
		name string
		file File
		want bool
	}{
		{name: "no owner", file: File{}, want: true},
		{name: "owned by article", file: File{ArticleID: &articleID}, want: false},
		{name: "owned by paper", file: File{PaperID: &paperID}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.file.IsOrphaned(); got != tt.want {
				t.Errorf("IsOrphaned() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFileHumanSize(t *testing.T) {
	tests := []struct {
		name string
		size int64
		want string
	}{
		{name: "bytes", size: 512, want: "512 B"},
		{name: "kilobytes", size: 2048, want: "2.0 KB"},
		{name: "megabytes", size: 5 * 1024 * 1024, want: "5.0 MB"},
		{name: "fractional megabytes", size: 1536 * 1024, want: "1.5 MB"},
		{name: "gigabytes", size: 3 * 1024 * 1024 * 1024, want: "3.0 GB"},
		{name: "zero", size: 0, want: "0 B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := File{FileSize: tt.size}
			if got := f.HumanSize(); got != tt.want {
				t.Errorf("HumanSize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileTypeFromMime(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{mime: "image/png", want: FileTypeImage},
		{mime: "image/svg+xml", want: FileTypeImage},
		{mime: "application/pdf", want: FileTypePDF},
		{mime: "video/webm", want: FileTypeVideo},
		{mime: "audio/mpeg", want: FileTypeAudio},
		{mime: "text/plain", want: FileTypeDocument},
		{mime: "text/csv", want: FileTypeDocument},
		{mime: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", want: FileTypeDocument},
		{mime: "application/zip", want: FileTypeOther},
		{mime: "", want: FileTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			if got := FileTypeFromMime(tt.mime); got != tt.want {
				t.Errorf("FileTypeFromMime(%q) = %q, want %q", tt.mime, got, tt.want)
			}
		})
	}
}

func TestExtensionFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{filename: "photo.JPG", want: "jpg"},
		{filename: "report.pdf", want: "pdf"},
		{filename: "archive.tar.gz", want: "gz"},
		{filename: "no-extension", want: ""},
		{filename: ".gitignore", want: "gitignore"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := ExtensionFromFilename(tt.filename); got != tt.want {
				t.Errorf("ExtensionFromFilename(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
