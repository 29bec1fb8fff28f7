package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

// TestFormatFileSize verifies the human-readable size rendering used for
// video messages, including the zero and unit-boundary cases.
func TestFormatFileSize(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{500, "500 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1572864, "1.5 MB"},
		{1073741824, "1 GB"},
	}

	for _, tc := range cases {
		if got := FormatFileSize(tc.bytes); got != tc.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}

// TestTextMessageOmitsOtherKinds verifies that the tagged union only
// serializes the fields belonging to the message's kind.
func TestTextMessageOmitsOtherKinds(t *testing.T) {
	msg := NewTextMessage("alice", "hi")

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	for _, field := range []string{"url", "originalName", "mimeType", "sizeBytes", "videoPath", "videoName"} {
		if strings.Contains(string(data), `"`+field+`"`) {
			t.Errorf("text message serialized foreign field %q: %s", field, data)
		}
	}
	if !strings.Contains(string(data), `"type":"text"`) {
		t.Errorf("text message missing kind tag: %s", data)
	}
	if !strings.Contains(string(data), `"message":"hi"`) {
		t.Errorf("text message missing body: %s", data)
	}
}

// TestNewVideoMessage verifies the stored path points under the public
// uploads route and the size arrives pre-formatted.
func TestNewVideoMessage(t *testing.T) {
	msg := NewVideoMessage("bob", VideoRequest{Filename: "clip.mp4", FileSize: 1536})

	if msg.VideoPath != "/uploads/clip.mp4" {
		t.Errorf("VideoPath = %q, want %q", msg.VideoPath, "/uploads/clip.mp4")
	}
	if msg.VideoName != "clip.mp4" {
		t.Errorf("VideoName = %q, want %q", msg.VideoName, "clip.mp4")
	}
	if msg.FormattedSize != "1.5 KB" {
		t.Errorf("FormattedSize = %q, want %q", msg.FormattedSize, "1.5 KB")
	}
	if msg.Kind != KindVideo {
		t.Errorf("Kind = %q, want %q", msg.Kind, KindVideo)
	}
}

// TestEncodeEnvelope verifies envelope encoding with and without payloads.
func TestEncodeEnvelope(t *testing.T) {
	data, err := Encode(EventInfo, "Welcome alice!")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Event != EventInfo {
		t.Errorf("Event = %q, want %q", env.Event, EventInfo)
	}

	var text string
	if err := json.Unmarshal(env.Data, &text); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if text != "Welcome alice!" {
		t.Errorf("Data = %q, want %q", text, "Welcome alice!")
	}

	noData, err := Encode(EventServerInfo, nil)
	if err != nil {
		t.Fatalf("Encode without payload: %v", err)
	}
	if strings.Contains(string(noData), "data") {
		t.Errorf("payload-less envelope carries a data field: %s", noData)
	}
}

// TestEncodeNullSentinel verifies that a nil typed pointer, the "no one is
// typing" sentinel, serializes as an explicit JSON null.
func TestEncodeNullSentinel(t *testing.T) {
	var name *string
	data, err := Encode(EventTyping, name)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), `"data":null`) {
		t.Errorf("typing sentinel not serialized as null: %s", data)
	}
}
