package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedRouter(maxRequests int, window time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/ingest", BodyKeyRateLimiter(BodyKeyPolicy{
		Window:      window,
		MaxRequests: maxRequests,
		KeyFunc:     TranscriptKeyFunc,
	}), func(c *gin.Context) {
		// 路由后段仍能读到完整请求体
		body, _ := io.ReadAll(c.Request.Body)
		c.JSON(http.StatusOK, gin.H{"bodyLen": len(body)})
	})
	return router
}

func postTranscript(router *gin.Engine, courseCode string) *httptest.ResponseRecorder {
	body := fmt.Sprintf(`{"courseCode":%q,"transcript":"hello"}`, courseCode)
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiterBlocksAfterLimit(t *testing.T) {
	router := newLimitedRouter(10, time.Minute)

	for i := 0; i < 10; i++ {
		w := postTranscript(router, "ABC1234")
		require.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}

	w := postTranscript(router, "ABC1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp struct {
		RetryAfter int `json:"retryAfter"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Greater(t, resp.RetryAfter, 0)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	router := newLimitedRouter(2, time.Minute)

	postTranscript(router, "ABC1234")
	postTranscript(router, "ABC1234")
	require.Equal(t, http.StatusTooManyRequests, postTranscript(router, "ABC1234").Code)

	// 另一个课程码不受影响
	assert.Equal(t, http.StatusOK, postTranscript(router, "XYZ7890").Code)
}

func TestRateLimiterWindowResets(t *testing.T) {
	router := newLimitedRouter(1, 50*time.Millisecond)

	require.Equal(t, http.StatusOK, postTranscript(router, "ABC1234").Code)
	require.Equal(t, http.StatusTooManyRequests, postTranscript(router, "ABC1234").Code)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, http.StatusOK, postTranscript(router, "ABC1234").Code)
}

func TestRateLimiterFailsOpenOnBadBody(t *testing.T) {
	router := newLimitedRouter(5, time.Minute)

	// 无法解析的请求体不拦截，归入共享桶
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewBufferString("not json at all"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// 坏请求体不消耗正常课程码的配额
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, postTranscript(router, "ABC1234").Code)
	}
}

func TestRateLimiterHeaders(t *testing.T) {
	router := newLimitedRouter(3, time.Minute)

	w := postTranscript(router, "ABC1234")
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimiterRestoresBody(t *testing.T) {
	router := newLimitedRouter(10, time.Minute)

	w := postTranscript(router, "ABC1234")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		BodyLen int `json:"bodyLen"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Greater(t, resp.BodyLen, 0)
}
