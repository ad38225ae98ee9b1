// README: Tests for bearer auth, logging and recovery middleware.
package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"gigmarket/internal/http/middleware"
	"gigmarket/internal/infra"
)

// stubVerifier is a test double for infra.TokenVerifier.
type stubVerifier struct {
	token *infra.FirebaseToken
	err   error
	got   string
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, raw string) (*infra.FirebaseToken, error) {
	s.got = raw
	return s.token, s.err
}

func newTestRouter(verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth(verifier))
	r.GET("/test", func(c *gin.Context) {
		a := middleware.CallerActor(c)
		c.JSON(http.StatusOK, gin.H{"uid": a.ID, "role": a.Role})
	})
	return r
}

func get(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeader(t *testing.T) {
	w := get(newTestRouter(&stubVerifier{token: &infra.FirebaseToken{UID: "user1"}}), "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	w := get(newTestRouter(&stubVerifier{token: &infra.FirebaseToken{UID: "user1"}}), "Token sometoken")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_EmptyBearer(t *testing.T) {
	w := get(newTestRouter(&stubVerifier{token: &infra.FirebaseToken{UID: "user1"}}), "Bearer   ")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_VerifierError(t *testing.T) {
	w := get(newTestRouter(&stubVerifier{err: errors.New("bad token")}), "Bearer invalidtoken")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_ValidToken_UIDAndRolePopulated(t *testing.T) {
	v := &stubVerifier{token: &infra.FirebaseToken{
		UID:    "provider123",
		Claims: map[string]interface{}{"role": "provider"},
	}}
	w := get(newTestRouter(v), "Bearer validtoken")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if v.got != "validtoken" {
		t.Errorf("verifier got %q", v.got)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"uid":"provider123"`) {
		t.Errorf("expected uid provider123 in body, got %s", body)
	}
	if !strings.Contains(body, `"role":"provider"`) {
		t.Errorf("expected role provider in body, got %s", body)
	}
}

func TestAuth_UnknownRoleIsDropped(t *testing.T) {
	for _, claims := range []map[string]interface{}{
		{},
		{"role": "superuser"},
		{"role": 7},
	} {
		w := get(newTestRouter(&stubVerifier{token: &infra.FirebaseToken{UID: "client456", Claims: claims}}), "Bearer validtoken")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), `"role":""`) {
			t.Errorf("claims %v: expected empty role, got %s", claims, w.Body.String())
		}
	}
}

func TestRecoveryAndLogging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, hook := test.NewNullLogger()
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log))
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	found := false
	for _, e := range hook.AllEntries() {
		if e.Message == "handler panicked" && e.Level == logrus.ErrorLevel {
			found = true
		}
	}
	if !found {
		t.Error("panic was not logged")
	}

	hook.Reset()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	last := hook.LastEntry()
	if last == nil || last.Message != "request" || last.Data["status"] != http.StatusNoContent {
		t.Errorf("unexpected log entry %+v", last)
	}
}
