package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alimgiray/opendev/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), RequestLogger())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": GetRequestID(c)})
	})
	return router
}

func TestRequestID(t *testing.T) {
	router := newTestRouter()

	t.Run("Generated when missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		router.ServeHTTP(w, req)

		id := w.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, id, body["request_id"])
	})

	t.Run("Valid client id is kept", func(t *testing.T) {
		clientID := uuid.New().String()
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, clientID)
		router.ServeHTTP(w, req)

		assert.Equal(t, clientID, w.Header().Get(RequestIDHeader))
	})

	t.Run("Invalid client id is replaced", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, "not-a-uuid\nInjected: header")
		router.ServeHTTP(w, req)

		assert.NotEqual(t, "not-a-uuid\nInjected: header", w.Header().Get(RequestIDHeader))
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.Init("info")
	logger.SetOutput(&buf)

	router := newTestRouter()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test?x=1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "Request handled", entry["msg"])
	assert.Equal(t, "/test?x=1", entry["path"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, w.Header().Get(RequestIDHeader), entry["request_id"])
}
