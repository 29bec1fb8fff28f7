// Package protocol defines the persisted chat message model shared by the
// message store, the hub, and history replay.
package protocol

import (
	"fmt"
	"time"
)

// Message kinds. The zero-value kind is invalid; constructors below set it.
const (
	KindText  = "text"
	KindFile  = "file"
	KindVideo = "video"
)

// Message is a single chat event as persisted and broadcast. It is a tagged
// union over Kind: text messages carry Body, file messages carry the upload
// metadata fields, video messages carry the video fields. Messages are
// immutable once appended; history order is the append order of the log.
type Message struct {
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
	Kind      string `json:"type"`

	// KindText
	Body string `json:"message,omitempty"`

	// KindFile
	URL          string `json:"url,omitempty"`
	OriginalName string `json:"originalName,omitempty"`
	MimeType     string `json:"mimeType,omitempty"`
	SizeBytes    int64  `json:"sizeBytes,omitempty"`

	// KindVideo
	VideoPath     string `json:"videoPath,omitempty"`
	VideoName     string `json:"videoName,omitempty"`
	FormattedSize string `json:"fileSize,omitempty"`
}

// Now returns the current wall-clock time in milliseconds, the timestamp
// resolution used throughout the protocol.
func Now() int64 {
	return time.Now().UnixMilli()
}

// NewTextMessage builds a text message from the given sender and body.
func NewTextMessage(sender, body string) Message {
	return Message{
		Sender:    sender,
		Timestamp: Now(),
		Kind:      KindText,
		Body:      body,
	}
}

// NewFileMessage builds a file message from upload metadata.
func NewFileMessage(sender string, info FileInfo) Message {
	return Message{
		Sender:       sender,
		Timestamp:    Now(),
		Kind:         KindFile,
		URL:          info.URL,
		OriginalName: info.Name,
		MimeType:     info.Type,
		SizeBytes:    info.Size,
	}
}

// NewVideoMessage builds a video message. The stored path points under the
// public uploads route and the size is pre-formatted for display.
func NewVideoMessage(sender string, req VideoRequest) Message {
	return Message{
		Sender:        sender,
		Timestamp:     Now(),
		Kind:          KindVideo,
		VideoPath:     "/uploads/" + req.Filename,
		VideoName:     req.Filename,
		FormattedSize: FormatFileSize(req.FileSize),
	}
}

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatFileSize renders a byte count as a human-readable string with one
// decimal place, e.g. "1.5 MB". Zero is rendered as "0 B".
func FormatFileSize(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}
	size := float64(bytes)
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}
	// Trim a trailing ".0" so whole values print bare, matching %g-style output.
	s := fmt.Sprintf("%.1f", size)
	if len(s) > 2 && s[len(s)-2:] == ".0" {
		s = s[:len(s)-2]
	}
	return s + " " + sizeUnits[unit]
}
