package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Bill1907/prepup/internal/llm"
	"github.com/Bill1907/prepup/internal/questions"
)

// apiClient calls the question endpoints of the prepup API.
type apiClient struct {
	base      string
	http      *http.Client
	authorize func(*http.Request)
}

func newAPIClient(base string, authorize func(*http.Request)) *apiClient {
	return &apiClient{
		base:      strings.TrimRight(base, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
		authorize: authorize,
	}
}

type questionFilter struct {
	ResumeID   string
	Category   string
	Bookmarked bool
}

func (c *apiClient) listQuestions(ctx context.Context, f questionFilter) ([]questions.Question, error) {
	q := url.Values{}
	if f.ResumeID != "" {
		q.Set("resumeId", f.ResumeID)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Bookmarked {
		q.Set("bookmarked", "true")
	}
	path := "/api/v1/questions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out struct {
		Questions []questions.Question `json:"questions"`
	}
	if err := c.do(ctx, http.MethodGet, path, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

func (c *apiClient) toggleBookmark(ctx context.Context, id string) (questions.Question, error) {
	var out questions.Question
	err := c.do(ctx, http.MethodPost, "/api/v1/questions/"+url.PathEscape(id)+"/bookmark", &out)
	return out, err
}

func (c *apiClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	if c.authorize != nil {
		c.authorize(req)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &llm.HTTPError{Provider: "prepup", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return json.Unmarshal(body, out)
}
