package errors

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/fund-ledger/internal/shared/reason"
)

func serve(t *testing.T, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/v1/funds/:fund", handler)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/funds/0xabc", nil))
	return rec
}

func TestChainedResponderMapsReasons(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewChainedResponder("https://errors.example", ReasonMapper)
	r.Now = func() time.Time { return now }
	cooldown := reason.New(reason.ClassTiming, "CooldownActive", "wait").WithTiming(now.Add(90 * time.Second))

	rec := serve(t, func(c *gin.Context) { r.RespondError(c, cooldown) })

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ContentTypeProblemJSON, rec.Header().Get("Content-Type"))
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "https://errors.example"+TypeConflict, problem.Type)
	assert.Equal(t, "/v1/funds/0xabc", problem.Instance)
	assert.Equal(t, "CooldownActive", problem.Extensions["reason"])
}

func TestRespondErrorFallsBackToInternal(t *testing.T) {
	r := NewChainedResponder("", ReasonMapper)
	r.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	rec := serve(t, func(c *gin.Context) { r.RespondError(c, errors.New("disk on fire")) })
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))

	rec = serve(t, func(c *gin.Context) { r.RespondError(c, ErrForbidden.WithDetail("no")) })
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
