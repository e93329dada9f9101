// README: Tests for Firebase auth middleware and caller extraction.
package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"drivebook/internal/http/middleware"
	"drivebook/internal/infra"
	"drivebook/internal/logging"
)

// stubVerifier is a test double for infra.TokenVerifier.
type stubVerifier struct {
	token *infra.FirebaseToken
	err   error
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.FirebaseToken, error) {
	return s.token, s.err
}

func newTestRouter(verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth(verifier))
	r.GET("/test", func(c *gin.Context) {
		p := middleware.Caller(c)
		c.JSON(http.StatusOK, gin.H{"uid": middleware.CallerUID(c), "role": middleware.CallerRole(c), "principal_role": p.Role})
	})
	return r
}

func serve(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_Rejections(t *testing.T) {
	valid := &stubVerifier{token: &infra.FirebaseToken{UID: "user1"}}
	cases := []struct {
		name     string
		verifier infra.TokenVerifier
		header   string
	}{
		{"missing header", valid, ""},
		{"wrong scheme", valid, "Token sometoken"},
		{"empty token", valid, "Bearer  "},
		{"verifier error", &stubVerifier{err: errors.New("bad token")}, "Bearer invalidtoken"},
		{"empty uid", &stubVerifier{token: &infra.FirebaseToken{}}, "Bearer sometoken"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(newTestRouter(tc.verifier), tc.header)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestAuth_RoleClaim(t *testing.T) {
	cases := []struct {
		claims map[string]interface{}
		want   string
	}{
		{map[string]interface{}{"role": "driver"}, "driver"},
		{map[string]interface{}{"role": "ADMIN"}, "admin"},
		{map[string]interface{}{"role": "pilot"}, "customer"},
		{map[string]interface{}{"role": 7}, "customer"},
		{map[string]interface{}{}, "customer"},
	}
	for _, tc := range cases {
		token := &infra.FirebaseToken{UID: "uid42", Claims: tc.claims}
		w := serve(newTestRouter(&stubVerifier{token: token}), "Bearer validtoken")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["uid"] != "uid42" || body["role"] != tc.want || body["principal_role"] != tc.want {
			t.Errorf("claims %v: got %v, want role %s", tc.claims, body, tc.want)
		}
	}
}

func TestRecoveryAndLogging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := logging.NewLoggerTo(&buf, "info")

	r := gin.New()
	r.Use(middleware.Logging(logger), middleware.Recovery(logger), middleware.Metrics())
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	logs := buf.String()
	if !strings.Contains(logs, "kaboom") || !strings.Contains(logs, `"status":500`) {
		t.Fatalf("expected panic and request lines, got %s", logs)
	}
}
