package voicesession

import (
	"encoding/json"

	"github.com/Bill1907/prepup/internal/llm"
)

// VoiceConfig is the fixed speech configuration sent with every session.
type VoiceConfig struct {
	Model                   string
	Voice                   string
	Modalities              []string
	InputTranscriptionModel string
	TurnDetection           llm.TurnDetection
}

// DefaultVoiceConfig returns the static interview voice setup.
func DefaultVoiceConfig() VoiceConfig {
	return VoiceConfig{
		Model:                   "gpt-4o-realtime-preview-2024-12-17",
		Voice:                   "alloy",
		Modalities:              []string{"audio", "text"},
		InputTranscriptionModel: "whisper-1",
		TurnDetection: llm.TurnDetection{
			Type:              "server_vad",
			Threshold:         0.5,
			PrefixPaddingMs:   300,
			SilenceDurationMs: 500,
		},
	}
}

// Tool names the speech model may call during an interview.
const (
	ToolRecordAnswerEvaluation = "record_answer_evaluation"
	ToolAskFollowUpQuestion    = "ask_follow_up_question"
	ToolEndInterview           = "end_interview"
)

var interviewTools = []llm.Tool{
	{
		Type:        "function",
		Name:        ToolRecordAnswerEvaluation,
		Description: "Record an evaluation of the candidate's answer once they have finished responding.",
		Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "score": {"type": "integer", "minimum": 1, "maximum": 10, "description": "Overall quality of the answer"},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "improvements": {"type": "array", "items": {"type": "string"}},
    "summary": {"type": "string"}
  },
  "required": ["score", "strengths", "improvements", "summary"]
}`),
	},
	{
		Type:        "function",
		Name:        ToolAskFollowUpQuestion,
		Description: "Ask a follow-up question that digs deeper into the candidate's previous answer.",
		Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "question": {"type": "string"},
    "reason": {"type": "string", "description": "What the follow-up is probing for"}
  },
  "required": ["question"]
}`),
	},
	{
		Type:        "function",
		Name:        ToolEndInterview,
		Description: "End the mock interview after closing remarks.",
		Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "closing_feedback": {"type": "string"}
  },
  "required": ["closing_feedback"]
}`),
	},
}

// Tools returns a copy of the interview tool descriptors.
func Tools() []llm.Tool {
	out := make([]llm.Tool, len(interviewTools))
	copy(out, interviewTools)
	return out
}
