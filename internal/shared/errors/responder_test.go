package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errLocked = errors.New("locked")

func serve(t *testing.T, responder *ChainedResponder, err error) (*httptest.ResponseRecorder, ProblemDetail) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/applications/:id", func(c *gin.Context) {
		responder.RespondError(c, err)
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/applications/a1", nil))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestRespondErrorUsesMapperAndRetryAfter(t *testing.T) {
	responder := NewChainedResponder("https://care.example", func(err error) (ProblemDetail, bool) {
		if !errors.Is(err, errLocked) {
			return ProblemDetail{}, false
		}
		return ErrTooManyRequests.WithCode("otp_locked_out").WithRetryAfter(1500 * time.Millisecond), true
	})

	rec, body := serve(t, responder, errLocked)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, ContentTypeProblemJSON, rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "https://care.example/problems/too-many-requests", body.Type)
	assert.Equal(t, "/api/v1/applications/a1", body.Instance)
	assert.Equal(t, "otp_locked_out", body.Extensions["code"])
	assert.Empty(t, ErrTooManyRequests.Extensions, "templates stay untouched")
}

func TestRespondErrorHidesUnknownErrors(t *testing.T) {
	rec, body := serve(t, NewChainedResponder(""), errors.New("pq: connection reset"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, body.Detail)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestRespondErrorPassesProblemDetails(t *testing.T) {
	wrapped := NewNotFoundProblem("application", "a1")
	rec, body := serve(t, NewChainedResponder(""), wrapped)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application a1 not found", body.Detail)
	assert.Equal(t, "application", body.Extensions["resource"])
}
