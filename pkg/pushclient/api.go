package pushclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nao1215/pushnot/pkg/httpclient"
)

// PushPath は公開鍵取得・購読登録・テスト通知のパス。
const PushPath = "/push"

// Keys はペイロード暗号化に必要な購読の鍵。
type Keys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Subscription はプッシュサービスが発行した購読。
// ブラウザの PushSubscription.toJSON() と同じ形式でシリアライズされる。
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     Keys   `json:"keys"`
}

// API はプッシュ通知サーバーのHTTPクライアント。
type API struct {
	// client はJSON APIクライアント。
	client *httpclient.Client
	// triggerToken はsendTestに付与するBearerトークン。
	triggerToken string
}

// NewAPI は新しいAPIクライアントを生成する。
func NewAPI(baseURL string) *API {
	return &API{client: httpclient.New(baseURL)}
}

// NewAPIWithTimeout はタイムアウトを指定してAPIクライアントを生成する。
func NewAPIWithTimeout(baseURL string, timeout time.Duration) *API {
	return &API{client: httpclient.NewWithTimeout(baseURL, timeout)}
}

// WithTriggerToken はsendTestにトークンを付与するAPIクライアントを返す。
func (a *API) WithTriggerToken(token string) *API {
	cp := *a
	cp.triggerToken = token
	return &cp
}

// BaseURL は接続先のベースURLを返す。
func (a *API) BaseURL() string {
	return a.client.BaseURL()
}

// PublicKey はサーバーのVAPID公開鍵（base64url）を取得する。
func (a *API) PublicKey(ctx context.Context) (string, error) {
	var resp struct {
		PublicKey string `json:"publicKey"`
	}
	if err := a.client.GetJSON(ctx, PushPath, &resp); err != nil {
		return "", fmt.Errorf("公開鍵の取得に失敗: %w", err)
	}
	return resp.PublicKey, nil
}

// SaveSubscription は購読をサーバーに保存する。
func (a *API) SaveSubscription(ctx context.Context, sub Subscription) error {
	req := struct {
		Action       string       `json:"action"`
		Subscription Subscription `json:"subscription"`
	}{Action: "subscribe", Subscription: sub}

	var resp struct {
		OK bool `json:"ok"`
	}
	if err := a.client.PostJSON(ctx, PushPath, req, &resp); err != nil {
		return fmt.Errorf("購読の保存に失敗: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("購読の保存に失敗: サーバーがokを返しませんでした")
	}
	return nil
}

// SendTest は全購読へのテスト通知をサーバーに依頼し、配信を試みた件数を返す。
// payloadがnilの場合はサーバーのデフォルト通知が送られる。
func (a *API) SendTest(ctx context.Context, payload any) (int, error) {
	req := struct {
		Action  string          `json:"action"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}{Action: "sendTest"}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("ペイロードのシリアライズに失敗: %w", err)
		}
		req.Payload = data
	}

	if a.triggerToken != "" {
		ctx = httpclient.WithBearerToken(ctx, a.triggerToken)
	}

	var resp struct {
		Sent int `json:"sent"`
	}
	if err := a.client.PostJSON(ctx, PushPath, req, &resp); err != nil {
		return 0, fmt.Errorf("テスト通知の送信に失敗: %w", err)
	}
	return resp.Sent, nil
}
