package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseMessenger/server/internal/models"
)

func TestStatusFor(t *testing.T) {
	cases := map[models.Kind]int{
		models.KindUnauthenticated:   http.StatusUnauthorized,
		models.KindForbidden:         http.StatusForbidden,
		models.KindNotFound:          http.StatusNotFound,
		models.KindDuplicateInvite:   http.StatusConflict,
		models.KindInvalidTransition: http.StatusConflict,
		models.KindChatGone:          http.StatusGone,
		models.KindValidationFailed:  http.StatusBadRequest,
		models.KindInternal:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusFor(kind), string(kind))
	}
}

func TestWriteErrorExposesKind(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, models.E(models.KindDuplicateInvite, "a pending invite for this user already exists"))

	assert.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "duplicate_invite", body["kind"])
	assert.Equal(t, "a pending invite for this user already exists", body["error"])
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["error"])
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
