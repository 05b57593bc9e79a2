package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/Bill1907/prepup/internal/llm"
)

type realtimeTranscription struct {
	Model string `json:"model"`
}

type realtimeSessionRequest struct {
	Model                   string                 `json:"model"`
	Voice                   string                 `json:"voice,omitempty"`
	Instructions            string                 `json:"instructions,omitempty"`
	Modalities              []string               `json:"modalities,omitempty"`
	InputAudioTranscription *realtimeTranscription `json:"input_audio_transcription,omitempty"`
	TurnDetection           *llm.TurnDetection     `json:"turn_detection,omitempty"`
	Tools                   []llm.Tool             `json:"tools,omitempty"`
	ToolChoice              string                 `json:"tool_choice,omitempty"`
}

type realtimeSessionResponse struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

// CreateRealtimeSession mints an ephemeral client secret for the realtime API.
func (c *Client) CreateRealtimeSession(ctx context.Context, req llm.RealtimeSessionRequest) (llm.RealtimeSession, error) {
	if req.Model == "" {
		return llm.RealtimeSession{}, fmt.Errorf("realtime model is required")
	}
	body := realtimeSessionRequest{
		Model:        req.Model,
		Voice:        req.Voice,
		Instructions: req.Instructions,
		Modalities:   req.Modalities,
		Tools:        req.Tools,
	}
	if req.InputTranscriptionModel != "" {
		body.InputAudioTranscription = &realtimeTranscription{Model: req.InputTranscriptionModel}
	}
	if req.TurnDetection.Type != "" {
		td := req.TurnDetection
		body.TurnDetection = &td
	}
	if len(req.Tools) > 0 {
		body.ToolChoice = "auto"
	}

	var out realtimeSessionResponse
	if err := c.postJSON(ctx, "/v1/realtime/sessions", body, &out); err != nil {
		return llm.RealtimeSession{}, err
	}
	if out.ClientSecret.Value == "" {
		return llm.RealtimeSession{}, fmt.Errorf("openai realtime session missing client secret")
	}
	model := out.Model
	if model == "" {
		model = req.Model
	}
	return llm.RealtimeSession{
		ID:           out.ID,
		Model:        model,
		ClientSecret: out.ClientSecret.Value,
		ExpiresAt:    time.Unix(out.ClientSecret.ExpiresAt, 0).UTC(),
	}, nil
}

var _ llm.RealtimeMinter = (*Client)(nil)
