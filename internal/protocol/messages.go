package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	// Inbound.
	TypeStartCamera    MessageType = "start_camera"
	TypeStartInterview MessageType = "start_interview"
	TypeAnswer         MessageType = "answer"

	// Outbound.
	TypeSetupInstruction MessageType = "setup_instruction"
	TypeLipSyncReady     MessageType = "lip_sync_ready"
	TypeQuestion         MessageType = "question"
	TypeStatusUpdate     MessageType = "status_update"
	TypeMusicComplete    MessageType = "music_complete"
	TypeMusicError       MessageType = "music_error"
	TypeError            MessageType = "error"
)

// GenerationStatus values carried by status_update events.
const (
	StatusGeneratingLyrics = "generating_lyrics"
	StatusGeneratingMusic  = "generating_music"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// StartCamera asks the server to run presence detection before the interview.
type StartCamera struct {
	Type MessageType `json:"type"`
}

// StartInterview skips presence detection and begins the question loop.
type StartInterview struct {
	Type MessageType `json:"type"`
}

// Answer carries one free-text reply to the current question.
type Answer struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type SetupInstruction struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

type LipSyncReady struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

type Question struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

type StatusUpdate struct {
	Type   MessageType `json:"type"`
	Status string      `json:"status"`
}

// MusicResult is the terminal success payload of one session.
type MusicResult struct {
	VideoURL string `json:"video_url"`
	AudioURL string `json:"audio_url,omitempty"`
	Lyrics   string `json:"lyrics,omitempty"`
	Title    string `json:"title,omitempty"`
}

type MusicComplete struct {
	Type MessageType `json:"type"`
	Data MusicResult `json:"data"`
}

type MusicError struct {
	Type MessageType `json:"type"`
	Data string      `json:"data"`
}

type ErrorEvent struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// ParseClientMessage decodes one inbound text frame. The original web client
// sends bare strings ("start_camera", or the answer text itself), so frames
// that are not JSON objects are accepted in that legacy form alongside the
// tagged JSON messages.
func ParseClientMessage(raw []byte) (any, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, errors.New("empty message")
	}

	if !strings.HasPrefix(text, "{") {
		switch MessageType(text) {
		case TypeStartCamera:
			return StartCamera{Type: TypeStartCamera}, nil
		case TypeStartInterview:
			return StartInterview{Type: TypeStartInterview}, nil
		default:
			return Answer{Type: TypeAnswer, Text: text}, nil
		}
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeStartCamera:
		return StartCamera{Type: TypeStartCamera}, nil
	case TypeStartInterview:
		return StartInterview{Type: TypeStartInterview}, nil
	case TypeAnswer:
		var msg Answer
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.Text = strings.TrimSpace(msg.Text)
		if msg.Text == "" {
			return nil, errors.New("invalid answer: empty text")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
