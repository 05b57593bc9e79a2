package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	sharedauth "github.com/Bill1907/prepup/internal/shared/auth"
	"github.com/Bill1907/prepup/internal/users"
)

func newGoogleRouter(svc *GoogleService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	svc.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestStartRequiresConfiguration(t *testing.T) {
	router := newGoogleRouter(NewGoogleService("", "", "", "http://ui.local/auth", nil))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/start", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}

func TestStartRedirectsWithState(t *testing.T) {
	svc := NewGoogleService("client", "secret", "http://api.local/callback", "http://ui.local/auth", nil)
	router := newGoogleRouter(svc)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/start", nil))
	if resp.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.Code)
	}
	loc, err := url.Parse(resp.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if state := loc.Query().Get("state"); state == "" || !svc.stateStore.consume(state) {
		t.Fatalf("expected stored state in %s", loc)
	}
}

func TestCallbackIssuesTokenAndStoresUser(t *testing.T) {
	t.Setenv("JWT_SECRET", "callback-secret")
	store := users.NewService(users.NewMemoryRepo())
	svc := NewGoogleService("client", "secret", "http://api.local/callback", "http://ui.local/auth", store)
	svc.fetchProfile = func(context.Context, string) (googleUserInfo, error) {
		return googleUserInfo{ID: "42", Email: "ada@example.com", Name: "Ada Lovelace", GivenName: "Ada"}, nil
	}
	svc.stateStore.put("state-1", time.Now().Add(svc.stateTTL))
	router := newGoogleRouter(svc)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?state=state-1&code=abc", nil))
	if resp.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d: %s", resp.Code, resp.Body.String())
	}

	loc, _ := url.Parse(resp.Header().Get("Location"))
	claims, err := sharedauth.VerifyJWT(loc.Query().Get("token"))
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if claims.Subject != "google:42" || claims.Email != "ada@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	user, err := store.GetByID(context.Background(), "google:42")
	if err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if user.GivenName != "Ada" {
		t.Fatalf("unexpected user %+v", user)
	}

	// state is single use
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?state=state-1&code=abc", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on replayed state, got %d", resp.Code)
	}
}

func TestAppendTokenKeepsExistingQuery(t *testing.T) {
	got, err := appendToken("http://ui.local/auth?next=%2Finterview", "tok")
	if err != nil {
		t.Fatalf("appendToken: %v", err)
	}
	if got != "http://ui.local/auth?next=%2Finterview&token=tok" {
		t.Fatalf("unexpected url %s", got)
	}
}
