package llm

import (
	_ "embed"
	"strconv"
	"strings"
)

var (
	//go:embed prompts/analyze_v1.txt
	analyzePromptV1 string
	//go:embed prompts/questions_v1.txt
	questionsPromptV1 string
)

const (
	DefaultPromptVersion = "v1"
	DefaultQuestionCount = 5
	MaxQuestionCount     = 20
)

// Message is a provider-neutral chat message.
type Message struct {
	Role    string
	Content string
}

// AnalyzePrompt builds the messages for a resume feedback request.
func AnalyzePrompt(input AnalyzeInput) []Message {
	return []Message{
		{Role: "system", Content: "You are a resume review engine. Respond with JSON only. Output must match the schema exactly."},
		{Role: "user", Content: render(analyzePromptV1, map[string]string{
			"{{TITLE}}":  orNA(input.ResumeTitle),
			"{{RESUME}}": input.ResumeText,
		})},
	}
}

// QuestionsPrompt builds the messages for an interview question batch.
func QuestionsPrompt(input QuestionInput) []Message {
	count := input.Count
	if count <= 0 {
		count = DefaultQuestionCount
	}
	if count > MaxQuestionCount {
		count = MaxQuestionCount
	}
	categories := "any of the allowed categories"
	if len(input.Categories) > 0 {
		categories = strings.Join(input.Categories, ", ")
	}
	return []Message{
		{Role: "system", Content: "You are an interview coach. Respond with JSON only. Output must match the schema exactly."},
		{Role: "user", Content: render(questionsPromptV1, map[string]string{
			"{{COUNT}}":      strconv.Itoa(count),
			"{{CATEGORIES}}": categories,
			"{{TITLE}}":      orNA(input.ResumeTitle),
			"{{FEEDBACK}}":   orNA(input.FeedbackSummary),
			"{{RESUME}}":     input.ResumeText,
		})},
	}
}

// FixJSONPrompt asks the model to repair its own malformed output.
func FixJSONPrompt(original []Message, raw string) []Message {
	out := make([]Message, 0, len(original)+2)
	out = append(out, original...)
	out = append(out,
		Message{Role: "assistant", Content: raw},
		Message{Role: "user", Content: "That was not valid JSON. Return only the corrected JSON object."},
	)
	return out
}

// Flatten joins messages into one prompt for providers without chat roles.
func Flatten(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

func render(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, k, v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
