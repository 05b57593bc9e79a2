package questions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Bill1907/prepup/internal/cache"
	"github.com/Bill1907/prepup/internal/llm"
	"github.com/Bill1907/prepup/internal/resumes"
	"github.com/Bill1907/prepup/internal/shared/storage/object/local"
	"github.com/Bill1907/prepup/internal/usage"
)

type fakeLLM struct {
	calls int
	last  llm.QuestionInput
	raw   string
	err   error
}

func (f *fakeLLM) AnalyzeResume(context.Context, llm.AnalyzeInput) (json.RawMessage, error) {
	return nil, errors.New("not used")
}

func (f *fakeLLM) GenerateQuestions(_ context.Context, in llm.QuestionInput) (json.RawMessage, error) {
	f.calls++
	f.last = in
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.raw), nil
}

const twoQuestions = `{"questions":[
 {"question":"Tell me about the payments migration.","category":"System Design","difficulty":"hard","suggestedAnswer":"Describe scope.","tips":["Quantify impact"]},
 {"question":"How do you mentor juniors?","category":"leadership","difficulty":"medium","suggestedAnswer":"Give an example.","tips":[]},
 {"question":"","category":"technical","difficulty":"easy"},
 {"question":"Unclassified?","category":"astrology","difficulty":"easy"}
]}`

type fixture struct {
	svc     *Service
	resumes *resumes.Service
	llm     *fakeLLM
}

func newFixture(t *testing.T, limits usage.Limits) fixture {
	t.Helper()
	resumeSvc := resumes.NewService(resumes.NewMemoryRepo(), local.New(t.TempDir()), nil)
	fake := &fakeLLM{raw: twoQuestions}
	svc := NewService(NewMemoryRepo(), resumeSvc, fake, usage.NewService(limits), cache.NewMemory(64, time.Minute))
	return fixture{svc: svc, resumes: resumeSvc, llm: fake}
}

func (f fixture) resume(t *testing.T, owner string, withFile bool) resumes.Resume {
	t.Helper()
	ctx := context.Background()
	res, err := f.resumes.Create(ctx, owner, resumes.CreateInput{Title: "Backend Engineer"})
	if err != nil {
		t.Fatalf("create resume: %v", err)
	}
	if withFile {
		res, err = f.resumes.UploadFile(ctx, owner, res.ID, "cv.txt", strings.NewReader("Led the payments migration to Go."))
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
	}
	return res
}

func TestGenerateWithoutFileSkipsModel(t *testing.T) {
	f := newFixture(t, nil)
	res := f.resume(t, "alice", false)

	_, err := f.svc.Generate(context.Background(), "alice", res.ID, GenerateInput{})
	if !errors.Is(err, resumes.ErrFileNotUploaded) {
		t.Fatalf("expected ErrFileNotUploaded, got %v", err)
	}
	if err.Error() != "Resume file not uploaded" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if f.llm.calls != 0 {
		t.Fatalf("expected no model calls, got %d", f.llm.calls)
	}
}

func TestGenerateStoresValidQuestions(t *testing.T) {
	f := newFixture(t, nil)
	res := f.resume(t, "alice", true)
	ctx := context.Background()

	out, err := f.svc.Generate(ctx, "alice", res.ID, GenerateInput{Count: 4, Categories: []string{"system design", "leadership"}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 valid questions, got %d", len(out))
	}
	if out[0].Category != "system_design" || out[0].Difficulty != "hard" {
		t.Fatalf("unexpected first question %+v", out[0])
	}
	if f.llm.last.ResumeText != "Led the payments migration to Go." {
		t.Fatalf("model did not receive extracted text: %q", f.llm.last.ResumeText)
	}
	if len(f.llm.last.Categories) != 2 || f.llm.last.Categories[0] != "system_design" {
		t.Fatalf("unexpected categories %v", f.llm.last.Categories)
	}

	list, err := f.svc.List(ctx, "alice", Filter{ResumeID: res.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != out[0].ID {
		t.Fatalf("expected stored questions in model order, got %+v", list)
	}
}

func TestGenerateFailsWhenNothingValid(t *testing.T) {
	f := newFixture(t, nil)
	f.llm.raw = `{"questions":[{"question":"","category":"technical"}]}`
	res := f.resume(t, "alice", true)

	if _, err := f.svc.Generate(context.Background(), "alice", res.ID, GenerateInput{}); !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestGenerateRejectsOtherUsersResume(t *testing.T) {
	f := newFixture(t, nil)
	res := f.resume(t, "bob", true)

	if _, err := f.svc.Generate(context.Background(), "alice", res.ID, GenerateInput{}); !errors.Is(err, resumes.ErrForbidden) {
		t.Fatalf("expected resumes.ErrForbidden, got %v", err)
	}
	if f.llm.calls != 0 {
		t.Fatalf("expected no model calls, got %d", f.llm.calls)
	}
}

func TestGenerateRespectsDailyQuota(t *testing.T) {
	f := newFixture(t, usage.Limits{usage.KindQuestionGeneration: 1})
	res := f.resume(t, "alice", true)
	ctx := context.Background()

	if _, err := f.svc.Generate(ctx, "alice", res.ID, GenerateInput{}); err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if _, err := f.svc.Generate(ctx, "alice", res.ID, GenerateInput{}); !errors.Is(err, usage.ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}
	if f.llm.calls != 1 {
		t.Fatalf("expected one model call, got %d", f.llm.calls)
	}
}

func TestToggleBookmarkTwiceRestoresOriginal(t *testing.T) {
	f := newFixture(t, nil)
	res := f.resume(t, "alice", true)
	ctx := context.Background()
	out, err := f.svc.Generate(ctx, "alice", res.ID, GenerateInput{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	id := out[0].ID

	first, err := f.svc.ToggleBookmark(ctx, "alice", id)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !first.IsBookmarked {
		t.Fatalf("expected bookmarked after first toggle")
	}
	bookmarked := true
	list, _ := f.svc.List(ctx, "alice", Filter{Bookmarked: &bookmarked})
	if len(list) != 1 || list[0].ID != id {
		t.Fatalf("expected bookmarked filter to find question, got %+v", list)
	}

	second, err := f.svc.ToggleBookmark(ctx, "alice", id)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if second.IsBookmarked {
		t.Fatalf("expected original value after second toggle")
	}
	got, _ := f.svc.Get(ctx, "alice", id)
	if got.IsBookmarked {
		t.Fatalf("expected stored value restored")
	}
}

func TestQuestionOwnership(t *testing.T) {
	f := newFixture(t, nil)
	res := f.resume(t, "bob", true)
	ctx := context.Background()
	out, err := f.svc.Generate(ctx, "bob", res.ID, GenerateInput{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	id := out[0].ID

	if _, err := f.svc.Get(ctx, "alice", id); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on get, got %v", err)
	}
	if _, err := f.svc.ToggleBookmark(ctx, "alice", id); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on toggle, got %v", err)
	}
	if err := f.svc.Delete(ctx, "alice", id); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on delete, got %v", err)
	}
	got, err := f.svc.Get(ctx, "bob", id)
	if err != nil || got.IsBookmarked {
		t.Fatalf("bob's question changed: %+v %v", got, err)
	}
	if list, _ := f.svc.List(ctx, "alice", Filter{}); len(list) != 0 {
		t.Fatalf("alice should see no questions, got %d", len(list))
	}
}

func TestDeleteIsPhysical(t *testing.T) {
	f := newFixture(t, nil)
	res := f.resume(t, "alice", true)
	ctx := context.Background()
	out, _ := f.svc.Generate(ctx, "alice", res.ID, GenerateInput{})

	if err := f.svc.Delete(ctx, "alice", out[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Repo.GetByID(ctx, out[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected row removed, got %v", err)
	}
}

func TestListRejectsUnknownCategory(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.svc.List(context.Background(), "alice", Filter{Category: "astrology"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
