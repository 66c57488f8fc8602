package middlewares

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/Rally/internal/utils"
)

const (
	taskQueued int32 = iota
	taskRunning
	taskAbandoned
)

// AsyncMiddleware 异步处理中间件
// 将请求的处理逻辑提交到 Worker Pool 中执行，而不是在 Gin 分配的 Goroutine 中直接执行。
// 这样可以严格控制并发处理的请求数量（DB 密集型操作），防止系统过载。
// 队列满时 Submit 阻塞，请求排队而不是被立即拒绝。
func AsyncMiddleware(pool *utils.WorkerPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 没有 Worker Pool 时降级为同步执行
		if pool == nil {
			c.Next()
			return
		}

		done := make(chan struct{})
		var state atomic.Int32

		// 主 Goroutine 阻塞等待，同一时间只有一个 Goroutine 在操作 c
		task := func() {
			defer close(done)
			// handler 在 worker 中执行，gin 的 Recovery 捕获不到这里的 panic
			defer func() {
				if r := recover(); r != nil {
					_ = c.Error(fmt.Errorf("panic: %v", r))
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				}
			}()
			if !state.CompareAndSwap(taskQueued, taskRunning) {
				return
			}
			c.Next()
		}

		if !pool.Submit(task) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
			return
		}

		select {
		case <-done:
		case <-pool.Done():
			// 池已停止：任务还在排队就放弃，已在执行则等它结束
			if state.CompareAndSwap(taskQueued, taskAbandoned) {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
				return
			}
			<-done
		}
	}
}
