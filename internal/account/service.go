package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Bill1907/prepup/internal/shared/telemetry"
)

// GuestClaimer moves records owned by a guest identity to a signed-in user.
type GuestClaimer interface {
	ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error)
}

type Service struct {
	Resumes   GuestClaimer
	Questions GuestClaimer
	Analyses  GuestClaimer
}

type ClaimResult struct {
	MigratedResumes   int `json:"migratedResumes"`
	MigratedQuestions int `json:"migratedQuestions"`
	MigratedAnalyses  int `json:"migratedAnalyses"`
}

func NewService(resumes, questions, analyses GuestClaimer) *Service {
	return &Service{Resumes: resumes, Questions: questions, Analyses: analyses}
}

// ClaimGuest reassigns guest data in dependency order. Every step only touches
// rows still owned by the guest, so a partially failed claim can be retried.
func (s *Service) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (ClaimResult, error) {
	if strings.TrimSpace(guestUserID) == "" || strings.TrimSpace(authedUserID) == "" {
		return ClaimResult{}, errors.New("guestUserID and authedUserID are required")
	}

	var result ClaimResult
	steps := []struct {
		name    string
		claimer GuestClaimer
		count   *int
	}{
		{"resumes", s.Resumes, &result.MigratedResumes},
		{"questions", s.Questions, &result.MigratedQuestions},
		{"analyses", s.Analyses, &result.MigratedAnalyses},
	}
	for _, step := range steps {
		if step.claimer == nil {
			continue
		}
		n, err := step.claimer.ClaimGuest(ctx, guestUserID, authedUserID)
		if err != nil {
			return result, fmt.Errorf("claim %s: %w", step.name, err)
		}
		*step.count = n
	}

	telemetry.Info("account.claim_guest", map[string]any{
		"user_id":            authedUserID,
		"guest_id":           guestUserID,
		"migrated_resumes":   result.MigratedResumes,
		"migrated_questions": result.MigratedQuestions,
		"migrated_analyses":  result.MigratedAnalyses,
	})
	return result, nil
}
