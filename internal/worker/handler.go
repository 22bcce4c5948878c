package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"

	"github.com/nao1215/pushnot/pkg/event"
	"golang.org/x/sync/errgroup"
)

// 通知表示のデフォルト値。
const (
	DefaultTitle = "Notification"
	DefaultIcon  = "/icon.svg"
	DefaultURL   = "/"
)

// State はService Workerのライフサイクル状態。
type State string

const (
	StateInstalling State = "installing"
	StateActivated  State = "activated"
	StateIdle       State = "idle"
	StateHandling   State = "handling"
)

// ErrNotActivated は有効化前に機能イベントを受け取った場合のエラー。
var ErrNotActivated = errors.New("Service Workerが有効化されていません")

// Notification は表示する通知。
type Notification struct {
	Title string
	Body  string
	Icon  string
	// Tag は通知の識別子。クリック時に閉じる対象を特定する。
	Tag string
	// Data はクリック時に参照する任意のデータ。nilにはならない。
	Data map[string]any
}

// Registration はService Worker登録に対する操作。
type Registration interface {
	// SkipWaiting は待機フェーズを飛ばして即座に有効化する。
	SkipWaiting(ctx context.Context) error
	// ShowNotification は通知を表示する。
	ShowNotification(ctx context.Context, n Notification) error
	// CloseNotification はtagの通知を閉じる。
	CloseNotification(ctx context.Context, tag string) error
}

// Client はService Workerが制御するウィンドウ。
type Client interface {
	URL() string
	Focus(ctx context.Context) error
}

// Clients はウィンドウ群に対する操作。
type Clients interface {
	// Claim は既に開いているページを制御下に置く。
	Claim(ctx context.Context) error
	// MatchAll は未制御のものも含めた全ウィンドウを返す。
	MatchAll(ctx context.Context) ([]Client, error)
	// OpenWindow は新しいウィンドウでurlを開く。
	OpenWindow(ctx context.Context, url string) error
}

// ExtendableEvent は処理中のイベント。
// WaitUntil で登録した処理が終わるまでワーカーは停止しない。
type ExtendableEvent struct {
	*event.Event
	ctx   context.Context
	group *errgroup.Group
}

// WaitUntil は非同期処理を登録する。
func (e *ExtendableEvent) WaitUntil(fn func(ctx context.Context) error) {
	e.group.Go(func() error {
		return fn(e.ctx)
	})
}

// Handler はService Workerのイベントハンドラ。
type Handler struct {
	// mu はstateを保護する。
	mu sync.Mutex
	// state は現在のライフサイクル状態。
	state State
	// registration はService Worker登録。
	registration Registration
	// clients はウィンドウ群。
	clients Clients
	// origin は相対URLを解決する基準。
	origin *url.URL
}

// NewHandler は新しいHandlerを生成する。originは "https://example.com" のような形式。
func NewHandler(registration Registration, clients Clients, origin string) (*Handler, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("オリジンが不正です: %q", origin)
	}
	return &Handler{
		state:        StateInstalling,
		registration: registration,
		clients:      clients,
		origin:       u,
	}, nil
}

// State は現在の状態を返す。
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Dispatch はイベントを処理し、WaitUntilで登録されたすべての処理の完了を待つ。
// 最初に失敗した処理のエラーを返す。
func (h *Handler) Dispatch(ctx context.Context, ev *event.Event) error {
	if err := h.enter(ev.EventType); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	ext := &ExtendableEvent{Event: ev, ctx: gctx, group: g}

	switch ev.EventType {
	case event.TypeInstall:
		h.onInstall(ext)
	case event.TypeActivate:
		h.onActivate(ext)
	case event.TypePush:
		h.onPush(ext)
	case event.TypeNotificationClick:
		h.onNotificationClick(ext)
	}

	err := g.Wait()
	h.leave(ev.EventType, err)
	if err != nil {
		return fmt.Errorf("%sイベントの処理に失敗: %w", ev.EventType, err)
	}
	return nil
}

// enter はイベント処理開始時の状態遷移を行う。
func (h *Handler) enter(t event.Type) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch t {
	case event.TypeInstall, event.TypeActivate:
		return nil
	case event.TypePush, event.TypeNotificationClick:
		if h.state == StateInstalling {
			return ErrNotActivated
		}
		h.state = StateHandling
		return nil
	default:
		return fmt.Errorf("未知のイベントです: %q", t)
	}
}

// leave はイベント処理終了時の状態遷移を行う。
func (h *Handler) leave(t event.Type, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch t {
	case event.TypeInstall:
		h.state = StateInstalling
	case event.TypeActivate:
		if err == nil {
			h.state = StateActivated
		}
	default:
		h.state = StateIdle
	}
}

func (h *Handler) onInstall(e *ExtendableEvent) {
	e.WaitUntil(h.registration.SkipWaiting)
}

func (h *Handler) onActivate(e *ExtendableEvent) {
	e.WaitUntil(h.clients.Claim)
}

// onPush はペイロードを通知として表示する。
// ペイロードが不正なJSONでも空のペイロードとして扱い、イベントは失敗させない。
func (h *Handler) onPush(e *ExtendableEvent) {
	n := buildNotification(e.Event)
	e.WaitUntil(func(ctx context.Context) error {
		return h.registration.ShowNotification(ctx, n)
	})
}

// buildNotification はpushイベントのペイロードから表示内容を組み立てる。
// フィールドごとに型を確認し、欠けているか型が違うものだけをデフォルト値にする。
func buildNotification(ev *event.Event) Notification {
	payload := map[string]any{}
	if len(ev.Data) > 0 {
		decoded, err := event.DecodeData[map[string]any](ev)
		switch {
		case err != nil:
			log.Printf("[Worker] ペイロードを解釈できないため空として扱います: %v", err)
		case *decoded != nil:
			payload = *decoded
		}
	}

	n := Notification{
		Title: DefaultTitle,
		Icon:  DefaultIcon,
		Data:  map[string]any{},
	}
	if title, ok := payload["title"].(string); ok && title != "" {
		n.Title = title
	}
	if body, ok := payload["body"].(string); ok {
		n.Body = body
	}
	if data, ok := payload["data"].(map[string]any); ok {
		n.Data = data
	}
	return n
}

// onNotificationClick は通知を閉じ、data.url のウィンドウにフォーカスするか新しく開く。
func (h *Handler) onNotificationClick(e *ExtendableEvent) {
	data, err := event.DecodeData[event.NotificationClickData](e.Event)
	if err != nil {
		data = &event.NotificationClickData{}
	}

	// 閉じられなくても画面遷移は続ける
	e.WaitUntil(func(ctx context.Context) error {
		if err := h.registration.CloseNotification(ctx, data.Tag); err != nil {
			log.Printf("[Worker] 通知を閉じられませんでした: tag=%s: %v", data.Tag, err)
		}
		return nil
	})

	target := h.resolve(data.Data)
	e.WaitUntil(func(ctx context.Context) error {
		return h.focusOrOpen(ctx, target)
	})
}

// resolve は通知データのurlをオリジン基準の絶対URLにする。
func (h *Handler) resolve(data map[string]any) string {
	raw, _ := data["url"].(string)
	if raw == "" {
		raw = DefaultURL
	}
	ref, err := url.Parse(raw)
	if err != nil {
		log.Printf("[Worker] 通知のurlが不正なため %s を開きます: %v", DefaultURL, err)
		ref = &url.URL{Path: DefaultURL}
	}
	return h.origin.ResolveReference(ref).String()
}

// focusOrOpen はtargetを表示中のウィンドウがあればフォーカスし、無ければ新しく開く。
func (h *Handler) focusOrOpen(ctx context.Context, target string) error {
	windows, err := h.clients.MatchAll(ctx)
	if err != nil {
		return fmt.Errorf("ウィンドウ一覧の取得に失敗: %w", err)
	}
	for _, w := range windows {
		if w.URL() == target {
			return w.Focus(ctx)
		}
	}
	return h.clients.OpenWindow(ctx, target)
}
