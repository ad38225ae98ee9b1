package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	apihttp "gigmarket/internal/http"
)

func TestRouterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, _ := test.NewNullLogger()
	r := apihttp.NewRouter(apihttp.RouterDeps{Logger: log})

	want := map[string]bool{
		"GET /health":                          true,
		"POST /api/payments/webhook":           true,
		"GET /api/orders":                      true,
		"GET /api/orders/:id":                  true,
		"GET /api/orders/:id/events":           true,
		"PATCH /api/orders/:id/status":         true,
		"POST /api/orders/:id/delivery":        true,
		"GET /api/orders/:id/delivery/:fileId": true,
		"POST /api/orders/:id/reviews":         true,
		"PATCH /api/reviews/:id":               true,
		"DELETE /api/reviews/:id":              true,
		"GET /api/users/:id/reviews":           true,
		"GET /api/users/:id/rating":            true,
		"POST /api/users/:id/rating/recompute": true,
		"GET /api/gigs/:id/rating":             true,
		"GET /api/notifications":               true,
		"POST /api/notifications/:id/read":     true,
	}
	got := map[string]bool{}
	for _, ri := range r.Routes() {
		got[ri.Method+" "+ri.Path] = true
	}
	assert.Equal(t, want, got)
}

func TestHealthAndAuthGate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, _ := test.NewNullLogger()
	r := apihttp.NewRouter(apihttp.RouterDeps{Logger: log})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
