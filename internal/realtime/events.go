package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Audio formats accepted by the realtime API.
const (
	AudioFormatPCM16    = "pcm16"
	AudioFormatG711ULaw = "g711_ulaw"
	AudioFormatG711ALaw = "g711_alaw"
)

// Turn detection modes.
const (
	TurnDetectionServerVAD   = "server_vad"
	TurnDetectionSemanticVAD = "semantic_vad"
)

// TranscriptionModelWhisper1 is the default input transcription model.
const TranscriptionModelWhisper1 = "whisper-1"

// VoiceAlloy is the default voice identity.
const VoiceAlloy = "alloy"

// TurnDetection configures when the model decides the caller's turn is over.
// All fields are optional; an unset field must not reach the wire so that the
// server keeps its own default.
type TurnDetection struct {
	Type              string   `json:"type,omitempty"`
	Threshold         *float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   *int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs *int     `json:"silence_duration_ms,omitempty"`
	Eagerness         string   `json:"eagerness,omitempty"`
	CreateResponse    *bool    `json:"create_response,omitempty"`
	InterruptResponse *bool    `json:"interrupt_response,omitempty"`
}

// InputAudioTranscription configures transcription of the caller's audio.
type InputAudioTranscription struct {
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

// InputAudioNoiseReduction configures mic-side noise reduction.
type InputAudioNoiseReduction struct {
	Type string `json:"type,omitempty"`
}

// ToolFunction describes one callable function exposed to the model.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// Tool declares a tool available to the model. Only function tools exist today.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// SessionConfig is the negotiable behavior of a realtime session. Every field
// is optional: a session.update must carry only the fields the caller set, so
// omitted fields never overwrite server defaults. Model and Voice cannot be
// changed by the server once the model has produced audio; callers express a
// change as a fresh partial update, never by mutating a config already sent.
type SessionConfig struct {
	Model                    string                    `json:"model,omitempty"`
	Modalities               []string                  `json:"modalities,omitempty"`
	Instructions             string                    `json:"instructions,omitempty"`
	Voice                    string                    `json:"voice,omitempty"`
	InputAudioFormat         string                    `json:"input_audio_format,omitempty"`
	OutputAudioFormat        string                    `json:"output_audio_format,omitempty"`
	InputAudioNoiseReduction *InputAudioNoiseReduction `json:"input_audio_noise_reduction,omitempty"`
	InputAudioTranscription  *InputAudioTranscription  `json:"input_audio_transcription,omitempty"`
	TurnDetection            *TurnDetection            `json:"turn_detection,omitempty"`
	Tools                    []Tool                    `json:"tools,omitempty"`
	ToolChoice               string                    `json:"tool_choice,omitempty"`
	Temperature              *float64                  `json:"temperature,omitempty"`
	MaxResponseOutputTokens  any                       `json:"max_response_output_tokens,omitempty"`
}

// DefaultSessionConfig is the configuration a new call starts with: mu-law
// audio both ways (the telephony-native encoding), whisper transcription and
// server VAD that answers on its own.
func DefaultSessionConfig() SessionConfig {
	createResponse := true
	return SessionConfig{
		Instructions:      "You are a helpful AI assistant!",
		Voice:             VoiceAlloy,
		InputAudioFormat:  AudioFormatG711ULaw,
		OutputAudioFormat: AudioFormatG711ULaw,
		InputAudioTranscription: &InputAudioTranscription{
			Model: TranscriptionModelWhisper1,
		},
		TurnDetection: &TurnDetection{
			Type:           TurnDetectionServerVAD,
			CreateResponse: &createResponse,
		},
	}
}

// Client event types.
const (
	TypeSessionUpdate          = "session.update"
	TypeInputAudioBufferAppend = "input_audio_buffer.append"
)

// Server event types the relay acts on. Anything else is ignored.
const (
	TypeResponseAudioDelta          = "response.audio.delta"
	TypeResponseDone                = "response.done"
	TypeInputTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
)

// SessionUpdateEvent updates the session's default configuration. Only fields
// present in Session are touched server-side.
type SessionUpdateEvent struct {
	EventID string        `json:"event_id,omitempty"`
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

// NewSessionUpdate wraps a config in a session.update with a fresh event id.
func NewSessionUpdate(cfg SessionConfig) SessionUpdateEvent {
	return SessionUpdateEvent{
		EventID: uuid.NewString(),
		Type:    TypeSessionUpdate,
		Session: cfg,
	}
}

// InputAudioBufferAppend streams one chunk of caller audio to the model.
type InputAudioBufferAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// ServerEvent is one decoded inbound message from the model leg. Raw keeps
// the full payload so log-bound events can be stored losslessly.
type ServerEvent struct {
	Type  string
	Delta string
	Raw   map[string]any
}

type serverEnvelope struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
}

// ParseServerEvent decodes a single inbound model message. Unknown types are
// returned as-is; the caller decides what to ignore.
func ParseServerEvent(raw []byte) (ServerEvent, error) {
	var env serverEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ServerEvent{}, fmt.Errorf("invalid model event: %w", err)
	}
	if env.Type == "" {
		return ServerEvent{}, fmt.Errorf("model event missing type")
	}

	ev := ServerEvent{Type: env.Type, Delta: env.Delta}
	switch env.Type {
	case TypeResponseDone, TypeInputTranscriptionCompleted:
		// Log-bound events keep the whole payload.
		var full map[string]any
		if err := json.Unmarshal(raw, &full); err != nil {
			return ServerEvent{}, fmt.Errorf("invalid model event: %w", err)
		}
		ev.Raw = full
	}
	return ev, nil
}
