package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/azaliaz/lms/library-service/internal/auth"
	"github.com/azaliaz/lms/library-service/internal/config"
	"github.com/azaliaz/lms/library-service/internal/server"
)

const (
	testSecret   = "test-secret"
	testAdminKey = "let-me-admin"
)

func newServer(t *testing.T, stor server.Storage) *server.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		Addr:       ":8080",
		JWTSecret:  testSecret,
		TokenTTL:   time.Hour,
		FinePerDay: 5,
		AdminKey:   testAdminKey,
	}
	return server.New(cfg, stor, auth.NewManager(testSecret, time.Hour, auth.NewMemoryTokenRevoker()))
}

func issue(t *testing.T, s *server.Server, uid, role string) string {
	t.Helper()
	token, err := s.Tokens.Issue(uid, role)
	require.NoError(t, err)
	return token
}

func do(t *testing.T, h http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}
