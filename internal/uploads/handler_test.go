package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Bill1907/prepup/internal/shared/storage/object"
)

type fakePresigner struct {
	owner string
}

func (f *fakePresigner) PresignPut(_ context.Context, ownerID, fileName string, expires time.Duration) (object.PresignedUpload, error) {
	f.owner = ownerID
	return object.PresignedUpload{URL: "https://bucket.s3.local/" + fileName, Key: "hash/" + fileName, ExpiresIn: expires}, nil
}

func newUploadRouter(p object.Presigner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", "google:7")
		c.Next()
	})
	NewHandler(p).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func postPresign(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/presign", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestPresignReturnsURLForCaller(t *testing.T) {
	p := &fakePresigner{}
	resp := postPresign(newUploadRouter(p), `{"fileName":"cv.pdf","contentType":"application/pdf","sizeBytes":1024}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var out presignResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Key != "hash/cv.pdf" || out.ExpiresInSeconds != 900 || p.owner != "google:7" {
		t.Fatalf("unexpected response %+v owner=%s", out, p.owner)
	}
}

func TestPresignValidation(t *testing.T) {
	router := newUploadRouter(&fakePresigner{})
	cases := []string{
		`{"contentType":"application/pdf","sizeBytes":10}`,
		`{"fileName":"cv.png","contentType":"image/png","sizeBytes":10}`,
		`{"fileName":"cv.pdf","contentType":"application/pdf","sizeBytes":0}`,
		`{"fileName":"cv.pdf","contentType":"application/pdf","sizeBytes":6291456}`,
		`not json`,
	}
	for _, body := range cases {
		if resp := postPresign(router, body); resp.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, resp.Code)
		}
	}
}

func TestPresignWithoutStoreSupport(t *testing.T) {
	resp := postPresign(newUploadRouter(nil), `{"fileName":"cv.pdf","contentType":"application/pdf","sizeBytes":10}`)
	if resp.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", resp.Code)
	}
}
