package telephony

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType identifies media-stream frame variants.
type EventType string

const (
	EventConnected EventType = "connected"
	EventStart     EventType = "start"
	EventMedia     EventType = "media"
	EventStop      EventType = "stop"
	EventMark      EventType = "mark"
)

var ErrUnsupportedEvent = errors.New("unsupported media-stream event")

type Envelope struct {
	Event EventType `json:"event"`
}

// ConnectedFrame is the stream's first message. It carries nothing the relay
// needs.
type ConnectedFrame struct {
	Event    EventType `json:"event"`
	Protocol string    `json:"protocol,omitempty"`
	Version  string    `json:"version,omitempty"`
}

type MediaFormat struct {
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

type StartMeta struct {
	AccountSid       string            `json:"accountSid,omitempty"`
	CallSid          string            `json:"callSid,omitempty"`
	StreamSid        string            `json:"streamSid"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	MediaFormat      MediaFormat       `json:"mediaFormat,omitempty"`
}

// StartFrame announces the call and carries the stream SID used as the call
// identifier everywhere else.
type StartFrame struct {
	Event          EventType `json:"event"`
	SequenceNumber string    `json:"sequenceNumber,omitempty"`
	StreamSid      string    `json:"streamSid"`
	Start          StartMeta `json:"start"`
}

type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// MediaFrame carries one base64-encoded chunk of caller audio.
type MediaFrame struct {
	Event     EventType    `json:"event"`
	StreamSid string       `json:"streamSid,omitempty"`
	Media     MediaPayload `json:"media"`
}

// StopFrame ends the stream.
type StopFrame struct {
	Event     EventType `json:"event"`
	StreamSid string    `json:"streamSid,omitempty"`
}

// MediaMessage is the outbound frame that plays model audio to the caller.
type MediaMessage struct {
	Event     EventType     `json:"event"`
	StreamSid string        `json:"streamSid"`
	Media     OutboundMedia `json:"media"`
}

type OutboundMedia struct {
	Payload string `json:"payload"`
}

// MarkMessage asks the stream to echo a named checkpoint once the preceding
// media has been played.
type MarkMessage struct {
	Event     EventType `json:"event"`
	StreamSid string    `json:"streamSid"`
	Name      string    `json:"name"`
}

// MarkResponseAudioSent names the checkpoint emitted after every forwarded
// model audio chunk.
const MarkResponseAudioSent = "response_audio_chunk_sent"

// NewMediaMessage builds the outbound media frame for one model audio chunk.
func NewMediaMessage(streamSid, payload string) MediaMessage {
	return MediaMessage{
		Event:     EventMedia,
		StreamSid: streamSid,
		Media:     OutboundMedia{Payload: payload},
	}
}

// NewMarkMessage builds the completion marker that follows a media frame.
func NewMarkMessage(streamSid string) MarkMessage {
	return MarkMessage{
		Event:     EventMark,
		StreamSid: streamSid,
		Name:      MarkResponseAudioSent,
	}
}

// ParseFrame decodes one inbound media-stream message.
func ParseFrame(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Event {
	case EventConnected:
		var frame ConnectedFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return nil, err
		}
		return frame, nil
	case EventStart:
		var frame StartFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return nil, err
		}
		if frame.StreamSid == "" {
			frame.StreamSid = frame.Start.StreamSid
		}
		if frame.StreamSid == "" {
			return nil, errors.New("start frame missing streamSid")
		}
		return frame, nil
	case EventMedia:
		var frame MediaFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return nil, err
		}
		return frame, nil
	case EventStop:
		var frame StopFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return nil, err
		}
		return frame, nil
	default:
		return nil, ErrUnsupportedEvent
	}
}
