package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/nao1215/pushnot/internal/config"
)

// Deliverer は1件の購読へペイロードを配信する。
// 失敗時は *DeliveryError を返すこと。
type Deliverer interface {
	Deliver(ctx context.Context, sub Subscription, payload []byte, creds config.Credentials) error
}

// WebPushDeliverer はWeb Pushプロトコル（RFC 8030, VAPID, aes128gcm）で配信するDeliverer。
type WebPushDeliverer struct {
	// client はプッシュサービスへのHTTPクライアント。
	client *http.Client
	// ttl はプッシュサービスがメッセージを保持する秒数。
	ttl int
	// urgency はUrgencyヘッダーの値。
	urgency webpush.Urgency
}

// NewWebPushDeliverer は新しいWebPushDelivererを生成する。
func NewWebPushDeliverer(timeout time.Duration, ttl int, urgency string) *WebPushDeliverer {
	return &WebPushDeliverer{
		client:  &http.Client{Timeout: timeout},
		ttl:     ttl,
		urgency: webpush.Urgency(urgency),
	}
}

// Deliver はペイロードを暗号化し、購読のendpointへ送信する。
func (d *WebPushDeliverer) Deliver(ctx context.Context, sub Subscription, payload []byte, creds config.Credentials) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient: d.client,
		// ライブラリ側で "mailto:" を付与するため、ここでは外しておく
		Subscriber:      strings.TrimPrefix(creds.Subject, "mailto:"),
		TTL:             d.ttl,
		Urgency:         d.urgency,
		VAPIDPublicKey:  creds.PublicKey,
		VAPIDPrivateKey: creds.PrivateKey,
	})
	if err != nil {
		return &DeliveryError{Endpoint: sub.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &DeliveryError{
		Endpoint:   sub.Endpoint,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("プッシュサービスが拒否しました: %s", strings.TrimSpace(string(body))),
	}
}
