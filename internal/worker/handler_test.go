package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/pushnot/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistration struct {
	mu        sync.Mutex
	skipped   int
	shown     []Notification
	closed    []string
	showDelay time.Duration
	showErr   error
	closeErr  error
}

func (r *fakeRegistration) SkipWaiting(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped++
	return nil
}

func (r *fakeRegistration) ShowNotification(ctx context.Context, n Notification) error {
	if r.showDelay > 0 {
		select {
		case <-time.After(r.showDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.showErr != nil {
		return r.showErr
	}
	r.shown = append(r.shown, n)
	return nil
}

func (r *fakeRegistration) CloseNotification(_ context.Context, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, tag)
	return r.closeErr
}

type fakeClient struct {
	url     string
	focused atomic.Int32
}

func (c *fakeClient) URL() string { return c.url }

func (c *fakeClient) Focus(context.Context) error {
	c.focused.Add(1)
	return nil
}

type fakeClients struct {
	// matchDelay はMatchAllが応答するまでの待ち時間。
	matchDelay time.Duration

	mu      sync.Mutex
	claimed int
	windows []Client
	opened  []string
}

func (c *fakeClients) Claim(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claimed++
	return nil
}

func (c *fakeClients) MatchAll(ctx context.Context) ([]Client, error) {
	if c.matchDelay > 0 {
		select {
		case <-time.After(c.matchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Client(nil), c.windows...), nil
}

func (c *fakeClients) OpenWindow(_ context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = append(c.opened, url)
	return nil
}

const testOrigin = "https://app.example"

// newActivatedHandler はinstallとactivateを済ませたHandlerを返す。
func newActivatedHandler(t *testing.T, reg *fakeRegistration, clients *fakeClients) *Handler {
	t.Helper()

	h, err := NewHandler(reg, clients, testOrigin)
	require.NoError(t, err)
	install, err := event.New(event.TypeInstall, nil)
	require.NoError(t, err)
	require.NoError(t, h.Dispatch(context.Background(), install))
	activate, err := event.New(event.TypeActivate, nil)
	require.NoError(t, err)
	require.NoError(t, h.Dispatch(context.Background(), activate))
	return h
}

func newClickEvent(t *testing.T, tag string, data map[string]any) *event.Event {
	t.Helper()
	ev, err := event.New(event.TypeNotificationClick, event.NotificationClickData{Tag: tag, Data: data})
	require.NoError(t, err)
	return ev
}

func TestNewHandler(t *testing.T) {
	t.Parallel()

	t.Run("不正なオリジンはエラー", func(t *testing.T) {
		t.Parallel()
		_, err := NewHandler(&fakeRegistration{}, &fakeClients{}, "/relative")
		assert.Error(t, err)
	})
}

func TestHandler_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("installで待機を飛ばしactivateでページを制御する", func(t *testing.T) {
		t.Parallel()
		reg := &fakeRegistration{}
		clients := &fakeClients{}
		h, err := NewHandler(reg, clients, testOrigin)
		require.NoError(t, err)
		assert.Equal(t, StateInstalling, h.State())

		install, err := event.New(event.TypeInstall, nil)
		require.NoError(t, err)
		require.NoError(t, h.Dispatch(context.Background(), install))
		assert.Equal(t, 1, reg.skipped)
		assert.Equal(t, StateInstalling, h.State())

		activate, err := event.New(event.TypeActivate, nil)
		require.NoError(t, err)
		require.NoError(t, h.Dispatch(context.Background(), activate))
		assert.Equal(t, 1, clients.claimed)
		assert.Equal(t, StateActivated, h.State())

		require.NoError(t, h.Dispatch(context.Background(), event.NewPush([]byte(`{}`))))
		assert.Equal(t, StateIdle, h.State())
	})

	t.Run("有効化前のpushはErrNotActivated", func(t *testing.T) {
		t.Parallel()
		h, err := NewHandler(&fakeRegistration{}, &fakeClients{}, testOrigin)
		require.NoError(t, err)

		err = h.Dispatch(context.Background(), event.NewPush([]byte(`{}`)))
		assert.ErrorIs(t, err, ErrNotActivated)
	})

	t.Run("未知のイベントはエラー", func(t *testing.T) {
		t.Parallel()
		h := newActivatedHandler(t, &fakeRegistration{}, &fakeClients{})

		err := h.Dispatch(context.Background(), &event.Event{EventType: "sync"})
		assert.Error(t, err)
	})
}

func TestHandler_Push(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    Notification
	}{
		{
			name:    "ペイロードの内容で通知を表示する",
			payload: `{"title":"Hi","body":"there","data":{"url":"/inbox"}}`,
			want:    Notification{Title: "Hi", Body: "there", Icon: DefaultIcon, Data: map[string]any{"url": "/inbox"}},
		},
		{
			name:    "titleが無ければデフォルトのタイトル",
			payload: `{"body":"only body"}`,
			want:    Notification{Title: DefaultTitle, Body: "only body", Icon: DefaultIcon, Data: map[string]any{}},
		},
		{
			name:    "不正なJSONでも空のペイロードとして表示する",
			payload: `not json`,
			want:    Notification{Title: DefaultTitle, Icon: DefaultIcon, Data: map[string]any{}},
		},
		{
			name:    "空のペイロードでも表示する",
			payload: ``,
			want:    Notification{Title: DefaultTitle, Icon: DefaultIcon, Data: map[string]any{}},
		},
		{
			name:    "dataが文字列でもtitleとbodyは使う",
			payload: `{"title":"Hi","body":"b","data":"x"}`,
			want:    Notification{Title: "Hi", Body: "b", Icon: DefaultIcon, Data: map[string]any{}},
		},
		{
			name:    "bodyが数値でもtitleは使う",
			payload: `{"title":"Hi","body":42}`,
			want:    Notification{Title: "Hi", Icon: DefaultIcon, Data: map[string]any{}},
		},
		{
			name:    "titleが数値ならデフォルトのタイトルで他は使う",
			payload: `{"title":7,"body":"b","data":{"url":"/x"}}`,
			want:    Notification{Title: DefaultTitle, Body: "b", Icon: DefaultIcon, Data: map[string]any{"url": "/x"}},
		},
		{
			name:    "nullでも空のペイロードとして表示する",
			payload: `null`,
			want:    Notification{Title: DefaultTitle, Icon: DefaultIcon, Data: map[string]any{}},
		},
		{
			name:    "JSON配列でも空のペイロードとして表示する",
			payload: `[1,2,3]`,
			want:    Notification{Title: DefaultTitle, Icon: DefaultIcon, Data: map[string]any{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reg := &fakeRegistration{}
			h := newActivatedHandler(t, reg, &fakeClients{})

			require.NoError(t, h.Dispatch(context.Background(), event.NewPush([]byte(tt.payload))))
			require.Len(t, reg.shown, 1)
			assert.Equal(t, tt.want, reg.shown[0])
		})
	}

	t.Run("通知の表示が終わるまでDispatchは戻らない", func(t *testing.T) {
		t.Parallel()
		reg := &fakeRegistration{showDelay: 50 * time.Millisecond}
		h := newActivatedHandler(t, reg, &fakeClients{})

		start := time.Now()
		require.NoError(t, h.Dispatch(context.Background(), event.NewPush([]byte(`{"title":"Hi"}`))))
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
		assert.Len(t, reg.shown, 1)
	})

	t.Run("表示に失敗した場合はエラーを返し状態はidleに戻る", func(t *testing.T) {
		t.Parallel()
		reg := &fakeRegistration{}
		h := newActivatedHandler(t, reg, &fakeClients{})
		reg.showErr = errors.New("permission revoked")

		err := h.Dispatch(context.Background(), event.NewPush([]byte(`{}`)))
		assert.ErrorIs(t, err, reg.showErr)
		assert.Equal(t, StateIdle, h.State())
	})
}

func TestHandler_NotificationClick(t *testing.T) {
	t.Parallel()

	t.Run("同じURLのウィンドウがあればフォーカスする", func(t *testing.T) {
		t.Parallel()
		reg := &fakeRegistration{}
		inbox := &fakeClient{url: testOrigin + "/inbox"}
		other := &fakeClient{url: testOrigin + "/"}
		clients := &fakeClients{windows: []Client{other, inbox}}
		h := newActivatedHandler(t, reg, clients)

		require.NoError(t, h.Dispatch(context.Background(), newClickEvent(t, "t1", map[string]any{"url": "/inbox"})))
		assert.Equal(t, []string{"t1"}, reg.closed)
		assert.Equal(t, int32(1), inbox.focused.Load())
		assert.Equal(t, int32(0), other.focused.Load())
		assert.Empty(t, clients.opened)
	})

	t.Run("一致するウィンドウが無ければ新しく開く", func(t *testing.T) {
		t.Parallel()
		clients := &fakeClients{windows: []Client{&fakeClient{url: testOrigin + "/"}}}
		h := newActivatedHandler(t, &fakeRegistration{}, clients)

		require.NoError(t, h.Dispatch(context.Background(), newClickEvent(t, "", map[string]any{"url": "/inbox"})))
		assert.Equal(t, []string{testOrigin + "/inbox"}, clients.opened)
	})

	t.Run("urlが無ければルートを対象にする", func(t *testing.T) {
		t.Parallel()
		root := &fakeClient{url: testOrigin + "/"}
		clients := &fakeClients{windows: []Client{root}}
		h := newActivatedHandler(t, &fakeRegistration{}, clients)

		require.NoError(t, h.Dispatch(context.Background(), newClickEvent(t, "", nil)))
		assert.Equal(t, int32(1), root.focused.Load())
	})

	t.Run("通知を閉じられなくてもウィンドウを開く", func(t *testing.T) {
		t.Parallel()
		reg := &fakeRegistration{closeErr: errors.New("close failed")}
		clients := &fakeClients{matchDelay: 10 * time.Millisecond}
		h := newActivatedHandler(t, reg, clients)

		require.NoError(t, h.Dispatch(context.Background(), newClickEvent(t, "t1", map[string]any{"url": "/inbox"})))
		assert.Equal(t, []string{"t1"}, reg.closed)
		assert.Equal(t, []string{testOrigin + "/inbox"}, clients.opened)
		assert.Equal(t, StateIdle, h.State())
	})

	t.Run("絶対URLはそのまま開く", func(t *testing.T) {
		t.Parallel()
		clients := &fakeClients{}
		h := newActivatedHandler(t, &fakeRegistration{}, clients)

		require.NoError(t, h.Dispatch(context.Background(), newClickEvent(t, "", map[string]any{"url": "https://other.example/page"})))
		assert.Equal(t, []string{"https://other.example/page"}, clients.opened)
	})
}
