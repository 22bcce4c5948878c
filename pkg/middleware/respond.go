package middleware

import "github.com/gin-gonic/gin"

// internalErrorMessage はクライアントに詳細を見せない500応答のメッセージ。
const internalErrorMessage = "内部サーバーエラーが発生しました"

// abortJSON は後続のハンドラーを止め、{"error": msg} を返す。
// 既に書き込みが始まっている場合はボディを追加しない。
func abortJSON(c *gin.Context, status int, msg string) {
	if c.Writer.Written() {
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
