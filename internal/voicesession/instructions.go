package voicesession

import (
	"fmt"
	"strings"

	"github.com/Bill1907/prepup/internal/questions"
	"github.com/Bill1907/prepup/internal/resumes"
)

// BuildInstructions renders the interviewer prompt for one question. The
// output depends only on its arguments.
func BuildInstructions(q questions.Question, res resumes.Resume) string {
	var b strings.Builder

	b.WriteString("You are an experienced interviewer running a spoken mock interview. ")
	b.WriteString("Speak naturally and concisely, one question at a time, and wait for the candidate to finish before responding.\n\n")

	b.WriteString("## Interview question\n")
	b.WriteString(strings.TrimSpace(q.Question))
	b.WriteString("\n")
	if q.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", strings.ReplaceAll(q.Category, "_", " "))
	}
	if q.Difficulty != "" {
		fmt.Fprintf(&b, "Difficulty: %s\n", q.Difficulty)
	}
	if answer := strings.TrimSpace(q.SuggestedAnswer); answer != "" {
		b.WriteString("\n## Reference answer (do not read aloud)\n")
		b.WriteString(answer)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n## Candidate resume: %s\n", strings.TrimSpace(res.Title))
	if fb := res.Feedback; fb != nil {
		if fb.Summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", fb.Summary)
		}
		if res.Score != nil {
			fmt.Fprintf(&b, "Resume score: %d/100\n", *res.Score)
		}
		writeList(&b, "Strengths", fb.Strengths)
		writeList(&b, "Areas to probe", fb.Improvements)
	}

	b.WriteString("\n## Flow\n")
	b.WriteString("1. Greet the candidate briefly and ask the interview question.\n")
	fmt.Fprintf(&b, "2. After each answer call %s, then decide whether to call %s.\n", ToolRecordAnswerEvaluation, ToolAskFollowUpQuestion)
	fmt.Fprintf(&b, "3. When the topic is covered, give short spoken feedback and call %s.\n", ToolEndInterview)
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
