package usage

import "time"

// Kind names a metered action.
type Kind string

const (
	KindVoiceSession       Kind = "voice_session"
	KindQuestionGeneration Kind = "question_generation"
)

// Usage is a user's consumption of one kind for the current UTC day.
type Usage struct {
	Kind     Kind      `json:"kind"`
	Limit    int       `json:"limit"`
	Used     int       `json:"used"`
	ResetsAt time.Time `json:"resetsAt"`
}

// Remaining returns how many units are left today.
func (u Usage) Remaining() int {
	if u.Used >= u.Limit {
		return 0
	}
	return u.Limit - u.Used
}

// Limits maps each kind to its daily allowance. A kind without an entry is unmetered.
type Limits map[Kind]int

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
