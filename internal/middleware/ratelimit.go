package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// BodyKeyPolicy 按请求体内容限流的策略。
// KeyFunc从请求体提取限流键；返回空串时归入unknown桶（宁可放行也不误伤）。
type BodyKeyPolicy struct {
	Window      time.Duration
	MaxRequests int
	KeyFunc     func(body []byte) string
	Message     string
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// bodyKeyStore 固定窗口计数器。过期条目靠请求路径上的概率清扫回收，
// 不起后台goroutine。
type bodyKeyStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
}

func newBodyKeyStore() *bodyKeyStore {
	return &bodyKeyStore{entries: make(map[string]*windowEntry)}
}

// hit 返回 (是否放行, 当前计数, 窗口重置时间)
func (s *bodyKeyStore) hit(key string, max int, window time.Duration) (bool, int, time.Time) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	// 约1%的请求触发全表清扫
	if rand.Intn(100) == 0 {
		for k, e := range s.entries {
			if now.After(e.resetAt) {
				delete(s.entries, k)
			}
		}
	}

	e, ok := s.entries[key]
	if !ok || now.After(e.resetAt) {
		e = &windowEntry{count: 0, resetAt: now.Add(window)}
		s.entries[key] = e
	}
	if e.count >= max {
		return false, e.count, e.resetAt
	}
	e.count++
	return true, e.count, e.resetAt
}

// BodyKeyRateLimiter 读取请求体提取限流键后按固定窗口限流。
// 请求体读完后回填，后续handler照常绑定。
func BodyKeyRateLimiter(policy BodyKeyPolicy) gin.HandlerFunc {
	store := newBodyKeyStore()
	if policy.MaxRequests <= 0 {
		policy.MaxRequests = 10
	}
	if policy.Window <= 0 {
		policy.Window = 15 * time.Minute
	}
	if policy.Message == "" {
		policy.Message = "Too many requests, please try again later"
	}

	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		key := ""
		if policy.KeyFunc != nil {
			key = policy.KeyFunc(body)
		}
		if key == "" {
			// 解析不出键时不误伤正常请求，归入共享的unknown桶
			key = "unknown"
		}

		allowed, count, resetAt := store.hit(key, policy.MaxRequests, policy.Window)

		remaining := policy.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(policy.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":       http.StatusTooManyRequests,
				"message":    policy.Message,
				"retryAfter": retryAfter,
			})
			return
		}
		c.Next()
	}
}

// TranscriptKeyFunc 从转写稿提交体中提取课程码作为限流键
func TranscriptKeyFunc(body []byte) string {
	var probe struct {
		CourseCode string `json:"courseCode"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.CourseCode == "" {
		return ""
	}
	return "transcript:" + probe.CourseCode
}
