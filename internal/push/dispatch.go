package push

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/nao1215/pushnot/internal/config"
	"golang.org/x/sync/errgroup"
)

// defaultPayload はペイロードが指定されなかった場合に送る通知。
var defaultPayload = []byte(`{"title":"Hello","body":"Push from server"}`)

// removeTimeout は失効購読の削除に許す時間。
const removeTimeout = 5 * time.Second

// Dispatcher は1つのペイロードを全購読へ配信する。
type Dispatcher struct {
	// store は購読ストア。
	store Store
	// deliverer は1件ごとの配信処理。
	deliverer Deliverer
	// keyring は署名情報。
	keyring *Keyring
	// timeout は1件の配信に許す時間。
	timeout time.Duration
	// concurrency は同時配信数の上限。
	concurrency int
}

// NewDispatcher は新しいDispatcherを生成する。
func NewDispatcher(store Store, deliverer Deliverer, keyring *Keyring, timeout time.Duration, concurrency int) *Dispatcher {
	if timeout <= 0 {
		timeout = config.DefaultDeliveryTimeout
	}
	if concurrency <= 0 {
		concurrency = config.DefaultDeliveryConcurrency
	}
	return &Dispatcher{
		store:       store,
		deliverer:   deliverer,
		keyring:     keyring,
		timeout:     timeout,
		concurrency: concurrency,
	}
}

// SendToAll はpayloadを全購読へ配信し、配信を試みた購読数を返す。
//
// 署名情報が無い場合はストアを読まずに *config.ConfigurationError を返す。
// 各配信は独立して並行に実行し、すべての完了を待ってから返る。
// 404/410 で失敗した購読は、配信中に鍵が更新されていなければ削除する。
// それ以外の失敗はログに記録して購読を残す。
// 空またはnullのpayloadはデフォルトの通知に置き換える。
func (d *Dispatcher) SendToAll(ctx context.Context, payload []byte) (int, error) {
	creds, err := d.keyring.Credentials()
	if err != nil {
		return 0, err
	}

	subs, err := d.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("配信先の取得に失敗: %w", err)
	}
	if len(subs) == 0 {
		return 0, nil
	}

	if trimmed := bytes.TrimSpace(payload); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		payload = defaultPayload
	}

	var delivered, removed, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, sub := range subs {
		g.Go(func() error {
			switch d.deliverOne(ctx, sub, payload, creds) {
			case outcomeDelivered:
				delivered.Add(1)
			case outcomeRemoved:
				removed.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Printf("[Push] 配信完了: attempted=%d delivered=%d removed=%d failed=%d",
		len(subs), delivered.Load(), removed.Load(), failed.Load())
	return len(subs), nil
}

// outcome は1件の配信結果。
type outcome int

const (
	outcomeDelivered outcome = iota
	outcomeRemoved
	outcomeFailed
)

// deliverOne は1件の購読へ配信し、失敗を分類する。
func (d *Dispatcher) deliverOne(ctx context.Context, sub Subscription, payload []byte, creds config.Credentials) outcome {
	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.deliverer.Deliver(attemptCtx, sub, payload, creds)
	if err == nil {
		return outcomeDelivered
	}

	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) || !deliveryErr.Terminal() {
		log.Printf("[Push] 配信に失敗しました（購読は保持）: %v", err)
		return outcomeFailed
	}

	// リクエストがキャンセルされても失効購読の削除は完了させる
	removeCtx, cancelRemove := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
	defer cancelRemove()
	removed, err := d.store.RemoveStale(removeCtx, sub)
	if err != nil {
		log.Printf("[Push] 失効した購読の削除に失敗: endpoint=%s: %v", sub.Endpoint, err)
		return outcomeFailed
	}
	if !removed {
		log.Printf("[Push] 配信中に再登録されたため購読を残します: endpoint=%s status=%d", sub.Endpoint, deliveryErr.StatusCode)
		return outcomeFailed
	}
	log.Printf("[Push] 失効した購読を削除しました: endpoint=%s status=%d", sub.Endpoint, deliveryErr.StatusCode)
	return outcomeRemoved
}
