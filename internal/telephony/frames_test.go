package telephony

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseFrameStart(t *testing.T) {
	raw := []byte(`{"event":"start","sequenceNumber":"1","streamSid":"MZ123","start":{"accountSid":"AC1","callSid":"CA123","streamSid":"MZ123","tracks":["inbound"],"mediaFormat":{"encoding":"audio/x-mulaw","sampleRate":8000,"channels":1}}}`)
	frame, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}

	start, ok := frame.(StartFrame)
	if !ok {
		t.Fatalf("frame type = %T, want StartFrame", frame)
	}
	if start.StreamSid != "MZ123" || start.Start.CallSid != "CA123" {
		t.Fatalf("unexpected start frame: %+v", start)
	}
	if start.Start.MediaFormat.SampleRate != 8000 {
		t.Fatalf("sampleRate = %d, want 8000", start.Start.MediaFormat.SampleRate)
	}
}

func TestParseFrameStartFallsBackToNestedSid(t *testing.T) {
	frame, err := ParseFrame([]byte(`{"event":"start","start":{"streamSid":"MZ9"}}`))
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if frame.(StartFrame).StreamSid != "MZ9" {
		t.Fatalf("streamSid fallback failed: %+v", frame)
	}
}

func TestParseFrameStartWithoutSid(t *testing.T) {
	if _, err := ParseFrame([]byte(`{"event":"start","start":{}}`)); err == nil {
		t.Fatalf("expected error for start frame without streamSid")
	}
}

func TestParseFrameMedia(t *testing.T) {
	frame, err := ParseFrame([]byte(`{"event":"media","streamSid":"MZ123","media":{"track":"inbound","payload":"ABCD"}}`))
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	media, ok := frame.(MediaFrame)
	if !ok {
		t.Fatalf("frame type = %T, want MediaFrame", frame)
	}
	if media.Media.Payload != "ABCD" {
		t.Fatalf("payload = %q, want %q", media.Media.Payload, "ABCD")
	}
}

func TestParseFrameStopAndConnected(t *testing.T) {
	frame, err := ParseFrame([]byte(`{"event":"stop","streamSid":"MZ123"}`))
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if _, ok := frame.(StopFrame); !ok {
		t.Fatalf("frame type = %T, want StopFrame", frame)
	}

	frame, err = ParseFrame([]byte(`{"event":"connected","protocol":"Call","version":"1.0.0"}`))
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if _, ok := frame.(ConnectedFrame); !ok {
		t.Fatalf("frame type = %T, want ConnectedFrame", frame)
	}
}

func TestParseFrameRejectsUnknownEvent(t *testing.T) {
	_, err := ParseFrame([]byte(`{"event":"dtmf"}`))
	if !errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("error = %v, want ErrUnsupportedEvent", err)
	}
}

func TestOutboundMessages(t *testing.T) {
	raw, err := json.Marshal(NewMediaMessage("MZ123", "WXYZ"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(raw) != `{"event":"media","streamSid":"MZ123","media":{"payload":"WXYZ"}}` {
		t.Fatalf("unexpected media message: %s", raw)
	}

	raw, err = json.Marshal(NewMarkMessage("MZ123"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(raw) != `{"event":"mark","streamSid":"MZ123","name":"response_audio_chunk_sent"}` {
		t.Fatalf("unexpected mark message: %s", raw)
	}
}
