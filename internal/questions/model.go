package questions

import (
	"strconv"
	"strings"
	"time"
)

// Categories lists the accepted question categories.
var Categories = []string{
	"behavioral",
	"technical",
	"system_design",
	"leadership",
	"problem_solving",
	"company_specific",
}

// Difficulties lists the accepted difficulty levels.
var Difficulties = []string{"easy", "medium", "hard"}

// Question is an interview question generated from a resume. Category and
// Difficulty are empty when the model did not classify the question.
type Question struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	ResumeID        string    `json:"resumeId"`
	Question        string    `json:"question"`
	Category        string    `json:"category,omitempty"`
	Difficulty      string    `json:"difficulty,omitempty"`
	SuggestedAnswer string    `json:"suggestedAnswer,omitempty"`
	Tips            []string  `json:"tips"`
	IsBookmarked    bool      `json:"isBookmarked"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	ResumeID   string
	Bookmarked *bool
	Category   string
	Limit      int
	Offset     int
}

func (f Filter) cacheID() string {
	bookmarked := "any"
	if f.Bookmarked != nil {
		if *f.Bookmarked {
			bookmarked = "yes"
		} else {
			bookmarked = "no"
		}
	}
	return strings.Join([]string{"list", f.ResumeID, bookmarked, f.Category, strconv.Itoa(f.Limit), strconv.Itoa(f.Offset)}, ":")
}

func (f Filter) matches(q Question) bool {
	if f.ResumeID != "" && q.ResumeID != f.ResumeID {
		return false
	}
	if f.Bookmarked != nil && q.IsBookmarked != *f.Bookmarked {
		return false
	}
	if f.Category != "" && q.Category != f.Category {
		return false
	}
	return true
}

// GenerateInput controls a generation request.
type GenerateInput struct {
	Count      int
	Categories []string
}

// NormalizeCategory maps loose spellings such as "System Design" onto the enumeration.
func NormalizeCategory(raw string) string {
	c := strings.ToLower(strings.TrimSpace(raw))
	c = strings.NewReplacer(" ", "_", "-", "_").Replace(c)
	return c
}

func validCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func cloneQuestion(q Question) Question {
	q.Tips = append([]string(nil), q.Tips...)
	return q
}
