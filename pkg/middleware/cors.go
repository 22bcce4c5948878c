package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// corsHeaders は許可したオリジンへの応答に付けるヘッダー。
var corsHeaders = map[string]string{
	"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
	"Access-Control-Allow-Headers": "Authorization, Content-Type",
	"Access-Control-Max-Age":       "86400",
	"Vary":                         "Origin",
}

// originPolicy はCORSで許可するオリジンの集合。
type originPolicy struct {
	any     bool
	origins map[string]bool
}

func newOriginPolicy(allowed []string) originPolicy {
	p := originPolicy{origins: make(map[string]bool, len(allowed))}
	for _, o := range allowed {
		if o == "*" {
			p.any = true
		}
		p.origins[o] = true
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	return origin != "" && (p.any || p.origins[origin])
}

// CORS はデモページを別オリジンから配信する場合に /push の呼び出しを許可するGinミドルウェアを返す。
// "*" を含めるとすべてのオリジンを許可する。プリフライトは常に204で打ち切る。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	policy := newOriginPolicy(allowedOrigins)

	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); policy.allows(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			for k, v := range corsHeaders {
				c.Header(k, v)
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
		}
	}
}
