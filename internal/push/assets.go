package push

import (
	"embed"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// staticFS はデモページ、ページ用スクリプト、Service Workerを含む。
//
//go:embed static
var staticFS embed.FS

// handleStatic は埋め込みファイルを指定のContent-Typeで返すハンドラ。
func (s *Server) handleStatic(name, contentType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := staticFS.ReadFile("static/" + name)
		if err != nil {
			log.Printf("静的ファイルの読み込みエラー: %s: %v", name, err)
			c.JSON(http.StatusNotFound, gin.H{"error": "ファイルが見つかりません"})
			return
		}
		c.Data(http.StatusOK, contentType, data)
	}
}

// handleServiceWorker はService Workerスクリプトを返すハンドラ。
// オリジン全体を制御できるようスコープ "/" を許可し、更新を即座に反映させるためキャッシュさせない。
func (s *Server) handleServiceWorker() gin.HandlerFunc {
	serve := s.handleStatic("sw.js", "application/javascript; charset=utf-8")
	return func(c *gin.Context) {
		c.Header("Service-Worker-Allowed", "/")
		c.Header("Cache-Control", "no-cache")
		serve(c)
	}
}
