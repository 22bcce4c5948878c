package push

import (
	"fmt"
	"net/http"
)

// ValidationError はクライアントから受け取った入力が不正であることを表す。
// HTTP境界では400として返される。
type ValidationError struct {
	// Message はクライアントに返すメッセージ。
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UnknownActionError は POST /push の action が未知であることを表す。
type UnknownActionError struct {
	// Action は受け取ったaction。
	Action string
}

func (e *UnknownActionError) Error() string {
	return "Unknown action"
}

// DeliveryError は1件の購読への配信失敗を表す。
// 配信処理の中で分類・記録され、呼び出し元へは伝播しない。
type DeliveryError struct {
	// Endpoint は配信先のendpoint。
	Endpoint string
	// StatusCode はプッシュサービスの応答コード。応答が無い場合は0。
	StatusCode int
	// Err は元のエラー。
	Err error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("配信に失敗: endpoint=%s status=%d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("配信に失敗: endpoint=%s: %v", e.Endpoint, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Terminal はプッシュサービスがendpointの消滅を報告したかを返す。
// trueの場合、その購読は二度と配信できないため削除する。
func (e *DeliveryError) Terminal() bool {
	return e.StatusCode == http.StatusGone || e.StatusCode == http.StatusNotFound
}
