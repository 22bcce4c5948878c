package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery はハンドラー内のパニックを500応答に変換するGinミドルウェアを返す。
// 配信処理の不具合で1リクエストが落ちてもサーバー全体は止めない。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			log.Printf("[Panic] %s %s: %v\n%s", c.Request.Method, c.Request.URL.Path, r, debug.Stack())
			abortJSON(c, http.StatusInternalServerError, internalErrorMessage)
		}()
		c.Next()
	}
}
