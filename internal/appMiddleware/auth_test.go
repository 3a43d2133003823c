package appMiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	auth := NewAuth("test-secret")

	token, err := auth.Issue(42, "alice")
	require.NoError(t, err)

	userID, username, err := auth.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, 42, userID)
	assert.Equal(t, "alice", username)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewAuth("secret-a").Issue(1, "alice")
	require.NoError(t, err)

	_, _, err = NewAuth("secret-b").Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, _, err := NewAuth("test-secret").Parse("not-a-token")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	auth := NewAuth("test-secret")
	token, err := auth.Issue(7, "bob")
	require.NoError(t, err)

	var gotID int
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserID(r.Context())
		require.True(t, ok)
		gotID = id
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, gotID)
}

func TestMiddlewareRejectsMissingAndMalformed(t *testing.T) {
	auth := NewAuth("test-secret")
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	for _, header := range []string{"", "token-without-scheme", "Bearer bad-token"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}
