package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "password123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid mobile number or password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"tok-` + body["mobileNumber"] + body["email"] + `"}`))
	})
	mux.HandleFunc("GET /api/books", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sf", r.URL.Query().Get("genre"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.False(t, r.URL.Query().Has("title"))
		_, _ = w.Write([]byte(`[{"id":"b1","title":"Dune","author":"Herbert","genre":"sf","quantity":1}]`))
	})
	mux.HandleFunc("GET /api/fine", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "tok-5550100" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"Forbidden - Invalid token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"fine":25}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_LoginAndFine(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, "")

	_, err := c.Fine("2024-01-01", "2024-01-10")
	assert.ErrorIs(t, err, ErrNoToken)

	token, err := c.Login("5550100", "password123")
	require.NoError(t, err)
	assert.Equal(t, "tok-5550100", token)

	fine, err := c.Fine("2024-01-01", "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, 25, fine)
}

func TestClient_LoginByEmail(t *testing.T) {
	srv := newTestServer(t)
	token, err := New(srv.URL+"/", "").Login("a@b.co", "password123")
	require.NoError(t, err)
	assert.Equal(t, "tok-a@b.co", token)
}

func TestClient_APIError(t *testing.T) {
	srv := newTestServer(t)

	_, err := New(srv.URL, "").Login("5550100", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid mobile number or password", apiErr.Message)

	_, err = New(srv.URL, "stale").Fine("2024-01-01", "2024-01-10")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestClient_Books(t *testing.T) {
	srv := newTestServer(t)
	books, err := New(srv.URL, "").Books(BookFilter{Genre: "sf", Limit: 2})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)
}
