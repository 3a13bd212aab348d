package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftpage/mediavault/internal/logger"
)

type routeFunc func(e *echo.Echo)

func (f routeFunc) Register(e *echo.Echo) { f(e) }

func TestErrorBodyIsStandardShape(t *testing.T) {
	s := NewServer(slog.Default(), ":0", 0)

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Not Found"}`, rec.Body.String())
}

func TestErrorHeadResponseHasNoBody(t *testing.T) {
	s := NewServer(slog.Default(), ":0", 0)

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestRequestScopedLoggerCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := routeFunc(func(e *echo.Echo) {
		e.GET("/touch", func(c echo.Context) error {
			logger.FromContext(c.Request().Context()).Info("touched")
			return c.NoContent(http.StatusOK)
		})
	})
	s := NewServer(log, ":0", 0, handler)

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/touch", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	requestID := rec.Header().Get(echo.HeaderXRequestID)
	require.NotEmpty(t, requestID)
	assert.Contains(t, buf.String(), "request_id")
	assert.Contains(t, buf.String(), requestID)
}
