package voice

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	eventItemCreated         = "conversation.item.created"
	eventInputTranscription  = "conversation.item.input_audio_transcription.completed"
	eventAudioTranscriptDone = "response.audio_transcript.done"
	eventAudioDelta          = "response.audio.delta"
	eventAudioDone           = "response.audio.done"
	eventSpeechStarted       = "input_audio_buffer.speech_started"
	eventSpeechStopped       = "input_audio_buffer.speech_stopped"
	eventSessionCreated      = "session.created"
	eventError               = "error"
)

// ServerEvent is the subset of realtime server events the client consumes.
type ServerEvent struct {
	Type       string       `json:"type"`
	EventID    string       `json:"event_id,omitempty"`
	ItemID     string       `json:"item_id,omitempty"`
	Transcript string       `json:"transcript,omitempty"`
	Delta      string       `json:"delta,omitempty"`
	Item       *Item        `json:"item,omitempty"`
	Error      *ServerError `json:"error,omitempty"`
}

type Item struct {
	ID      string        `json:"id"`
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

type ContentPart struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// Text returns the first non-empty text or transcript carried by the item.
func (it Item) Text() string {
	for _, part := range it.Content {
		if s := strings.TrimSpace(part.Text); s != "" {
			return s
		}
		if s := strings.TrimSpace(part.Transcript); s != "" {
			return s
		}
	}
	return ""
}

// ServerError is an error event sent by the vendor. It does not end the session.
type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("realtime %s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("realtime %s: %s", e.Type, e.Message)
}

func ParseServerEvent(data []byte) (ServerEvent, error) {
	var ev ServerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ServerEvent{}, fmt.Errorf("decode server event: %w", err)
	}
	if ev.Type == "" {
		return ServerEvent{}, fmt.Errorf("decode server event: missing type")
	}
	return ev, nil
}

func textMessage(text string) map[string]any {
	return map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type": "message",
			"role": string(RoleUser),
			"content": []map[string]string{
				{"type": "input_text", "text": text},
			},
		},
	}
}

var responseCreate = map[string]string{"type": "response.create"}
