package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// newCORSRouter は GET/POST/OPTIONS /push を持つテスト用ルーターを返す。
// called はハンドラーが実行されたかを記録する。
func newCORSRouter(allowed []string, called *bool) *gin.Engine {
	router := gin.New()
	router.Use(CORS(allowed))
	handler := func(c *gin.Context) {
		*called = true
		c.JSON(http.StatusOK, gin.H{"publicKey": "key"})
	}
	router.GET("/push", handler)
	router.POST("/push", handler)
	router.OPTIONS("/push", handler)
	return router
}

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		wantCode    int
		wantOrigin  string
		wantHandler bool
	}{
		{
			name:        "許可されたオリジンのGETにヘッダーが付く",
			allowed:     []string{"http://localhost:3000", "https://demo.example"},
			method:      http.MethodGet,
			origin:      "http://localhost:3000",
			wantCode:    http.StatusOK,
			wantOrigin:  "http://localhost:3000",
			wantHandler: true,
		},
		{
			name:        "許可リストの2番目のオリジンのPOSTにもヘッダーが付く",
			allowed:     []string{"http://localhost:3000", "https://demo.example"},
			method:      http.MethodPost,
			origin:      "https://demo.example",
			wantCode:    http.StatusOK,
			wantOrigin:  "https://demo.example",
			wantHandler: true,
		},
		{
			name:        "許可されていないオリジンにはヘッダーが付かない",
			allowed:     []string{"http://localhost:3000"},
			method:      http.MethodGet,
			origin:      "https://evil.example",
			wantCode:    http.StatusOK,
			wantHandler: true,
		},
		{
			name:        "Originヘッダーが無ければヘッダーが付かない",
			allowed:     []string{"*"},
			method:      http.MethodGet,
			wantCode:    http.StatusOK,
			wantHandler: true,
		},
		{
			name:        "空の許可リストではヘッダーが付かない",
			allowed:     []string{},
			method:      http.MethodGet,
			origin:      "http://localhost:3000",
			wantCode:    http.StatusOK,
			wantHandler: true,
		},
		{
			name:        "ワイルドカードはすべてのオリジンを許可する",
			allowed:     []string{"*"},
			method:      http.MethodGet,
			origin:      "https://demo.example",
			wantCode:    http.StatusOK,
			wantOrigin:  "https://demo.example",
			wantHandler: true,
		},
		{
			name:       "プリフライトは204で中断されハンドラーは呼ばれない",
			allowed:    []string{"http://localhost:3000"},
			method:     http.MethodOptions,
			origin:     "http://localhost:3000",
			wantCode:   http.StatusNoContent,
			wantOrigin: "http://localhost:3000",
		},
		{
			name:     "許可されていないオリジンのプリフライトも204でヘッダーは付かない",
			allowed:  []string{"http://localhost:3000"},
			method:   http.MethodOptions,
			origin:   "https://evil.example",
			wantCode: http.StatusNoContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			called := false
			router := newCORSRouter(tt.allowed, &called)

			req := httptest.NewRequest(tt.method, "/push", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("ステータスコード = %d, want %d", w.Code, tt.wantCode)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if called != tt.wantHandler {
				t.Errorf("ハンドラー呼び出し = %t, want %t", called, tt.wantHandler)
			}
		})
	}

	t.Run("許可したオリジンには必要なヘッダーがすべて付く", func(t *testing.T) {
		t.Parallel()

		called := false
		router := newCORSRouter([]string{"https://demo.example"}, &called)
		req := httptest.NewRequest(http.MethodOptions, "/push", nil)
		req.Header.Set("Origin", "https://demo.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		want := map[string]string{
			"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
			"Access-Control-Allow-Headers": "Authorization, Content-Type",
			"Access-Control-Max-Age":       "86400",
			"Vary":                         "Origin",
		}
		for k, v := range want {
			if got := w.Header().Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}
	})
}
