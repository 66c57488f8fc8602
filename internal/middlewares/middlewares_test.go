package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gopher0727/Rally/internal/testutil"
	"github.com/Gopher0727/Rally/internal/utils"
	"github.com/Gopher0727/Rally/middleware/jwt"
	"github.com/Gopher0727/Rally/utils/ratelimit"
)

type revokedSet map[string]bool

func (r revokedSet) IsRevoked(_ context.Context, jti string) bool { return r[jti] }

func init() {
	gin.SetMode(gin.TestMode)
}

func whoami(c *gin.Context) {
	uid, _ := UserID(c)
	c.JSON(http.StatusOK, gin.H{"user_id": uid})
}

func TestAuthMiddleware(t *testing.T) {
	tokens := jwt.NewTokenManager("secret", 1, 24)
	token, claims, err := tokens.GenerateToken(77, "alice", "alice@example.com")
	require.NoError(t, err)
	revokedToken, revokedClaims, err := tokens.GenerateToken(78, "bob", "bob@example.com")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", AuthMiddleware(tokens, revokedSet{revokedClaims.ID: true}), whoami)

	cases := []struct {
		name   string
		header string
		query  string
		code   int
	}{
		{"bearer", "Bearer " + token, "", http.StatusOK},
		{"query", "", "?token=" + token, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def", "", http.StatusUnauthorized},
		{"revoked", "Bearer " + revokedToken, "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusOK {
				assert.JSONEq(t, `{"user_id":77}`, w.Body.String())
			}
		})
	}
	assert.NotEmpty(t, claims.ID)
}

func TestRateLimitMiddleware(t *testing.T) {
	rdb, _ := testutil.NewRedis(t)
	limiter := ratelimit.NewWindowLimiter(rdb, zap.NewNop(), true)

	r := gin.New()
	r.POST("/comments",
		func(c *gin.Context) { c.Set(CtxUserID, int64(5)); c.Next() },
		RateLimitMiddleware(limiter, "comment", ratelimit.Rule{Limit: 2, Window: time.Minute}),
		func(c *gin.Context) { c.Status(http.StatusCreated) },
	)

	codes := make([]int, 3)
	left := make([]string, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/comments", nil))
		codes[i] = w.Code
		left[i] = w.Header().Get("X-RateLimit-Remaining")
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
	assert.Equal(t, []string{"1", "0", "0"}, left)
}

func TestRateLimitMiddleware_FailOpen(t *testing.T) {
	rdb, mr := testutil.NewRedis(t)
	mr.Close()
	limiter := ratelimit.NewWindowLimiter(rdb, zap.NewNop(), true)

	r := gin.New()
	r.POST("/vote",
		func(c *gin.Context) { c.Set(CtxUserID, int64(5)); c.Next() },
		RateLimitMiddleware(limiter, "vote", ratelimit.PerMinute(1)),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/vote", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAsyncMiddleware(t *testing.T) {
	pool := utils.NewWorkerPool(2, 8, zap.NewNop())
	pool.Start()
	defer pool.Stop()

	r := gin.New()
	r.Use(AsyncMiddleware(pool))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "done") })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "done", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAsyncMiddleware_StoppedPool(t *testing.T) {
	pool := utils.NewWorkerPool(1, 1, zap.NewNop())
	pool.Start()
	pool.Stop()

	r := gin.New()
	r.Use(AsyncMiddleware(pool))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
