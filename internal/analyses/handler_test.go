package analyses

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupAnalysisRouter(f fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", c.GetHeader("X-Test-User"))
		c.Set("requestId", "req-test")
		c.Next()
	})
	NewHandler(f.svc).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestStartAnalysisEndpoint(t *testing.T) {
	f := newFixture(t, validFeedback)
	res := f.resumeWithFile(t, "alice", "text")
	router := setupAnalysisRouter(f)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes/"+res.ID+"/analysis", nil)
	req.Header.Set("X-Test-User", "alice")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		AnalysisID string `json:"analysisId"`
		Status     string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.AnalysisID == "" || created.Status != StatusQueued {
		t.Fatalf("unexpected response %+v", created)
	}
	if len(f.queue.messages) != 1 || f.queue.messages[0].RequestID != "req-test" {
		t.Fatalf("expected queued message with request id, got %+v", f.queue.messages)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+created.AnalysisID, nil)
	req.Header.Set("X-Test-User", "mallory")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/resumes/"+res.ID+"/analyses", nil)
	req.Header.Set("X-Test-User", "alice")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestStartAnalysisUnknownResume(t *testing.T) {
	f := newFixture(t, validFeedback)
	router := setupAnalysisRouter(f)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes/missing/analysis", nil)
	req.Header.Set("X-Test-User", "alice")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
