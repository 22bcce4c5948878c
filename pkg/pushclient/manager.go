package pushclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/nao1215/pushnot/pkg/httpclient"
)

// Service Workerのスクリプトとスコープ。
const (
	WorkerScript = "/sw.js"
	WorkerScope  = "/"
)

// Permission は通知の許可状態。
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// SubscribeOptions はプッシュサービスへの購読オプション。
type SubscribeOptions struct {
	// UserVisibleOnly は届いたメッセージを必ず通知として表示することを宣言する。
	UserVisibleOnly bool
	// ApplicationServerKey はサーバーのVAPID公開鍵。
	ApplicationServerKey []byte
}

// Platform はブラウザなど通知を扱う実行環境。
type Platform interface {
	// SupportsWorkers はService Workerを登録できるかを返す。
	SupportsWorkers() bool
	// SupportsPush はプッシュの購読管理ができるかを返す。
	SupportsPush() bool
	// RequestPermission はユーザーに通知の許可を求める。
	RequestPermission(ctx context.Context) (Permission, error)
	// RegisterWorker はscriptをscopeでService Workerとして登録する。
	RegisterWorker(ctx context.Context, script, scope string) (Registration, error)
}

// Registration は登録済みのService Worker。
type Registration interface {
	// Subscription は既存の購読を返す。無い場合はnil。
	Subscription(ctx context.Context) (*Subscription, error)
	// Unsubscribe は既存の購読を解除する。
	Unsubscribe(ctx context.Context) error
	// Subscribe はプッシュサービスに新しく購読する。
	Subscribe(ctx context.Context, opts SubscribeOptions) (Subscription, error)
}

// Manager は1ページ分の購読ライフサイクルを管理する。
// 状態はページ読み込みごとに作り直され、永続化されない。
type Manager struct {
	// platform は実行環境。
	platform Platform
	// api はプッシュ通知サーバーのクライアント。
	api *API

	// mu は以下のフィールドを保護する。
	mu           sync.Mutex
	permission   Permission
	registration Registration
	endpoint     string
}

// NewManager は新しいManagerを生成する。
func NewManager(platform Platform, api *API) *Manager {
	return &Manager{
		platform:   platform,
		api:        api,
		permission: PermissionDefault,
	}
}

// CheckSupport はService Workerとプッシュの両方に対応しているかを返す。
func (m *Manager) CheckSupport() bool {
	return m.platform.SupportsWorkers() && m.platform.SupportsPush()
}

// RequestPermission はユーザーに通知の許可を求め、結果を記録する。
func (m *Manager) RequestPermission(ctx context.Context) (Permission, error) {
	perm, err := m.platform.RequestPermission(ctx)
	if err != nil {
		return PermissionDefault, fmt.Errorf("通知許可の要求に失敗: %w", err)
	}

	m.mu.Lock()
	m.permission = perm
	m.mu.Unlock()
	return perm, nil
}

// Permission は最後に記録した許可状態を返す。
func (m *Manager) Permission() Permission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permission
}

// Endpoint はサーバーへの保存が完了した購読のendpointを返す。未購読の場合は空文字列。
func (m *Manager) Endpoint() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoint
}

// RegisterWorker はService Workerを登録する。登録済みの場合は何もしない。
func (m *Manager) RegisterWorker(ctx context.Context) error {
	_, err := m.ensureRegistration(ctx)
	return err
}

// ensureRegistration は登録済みのService Workerを返す。未登録なら登録する。
func (m *Manager) ensureRegistration(ctx context.Context) (Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registration != nil {
		return m.registration, nil
	}
	if !m.CheckSupport() {
		return nil, ErrUnsupported
	}
	reg, err := m.platform.RegisterWorker(ctx, WorkerScript, WorkerScope)
	if err != nil {
		return nil, fmt.Errorf("Service Workerの登録に失敗: %w", err)
	}
	m.registration = reg
	return reg, nil
}

// Subscribe はプッシュサービスに購読し、サーバーに保存してendpointを返す。
//
// 既存の購読は鍵の一致に関わらず解除を試みる。解除の失敗は記録するだけで中断しない。
// endpointはサーバーへの保存が成功した後にのみ記録するため、失敗した場合は再試行できる。
func (m *Manager) Subscribe(ctx context.Context) (string, error) {
	if !m.CheckSupport() {
		return "", ErrUnsupported
	}
	if m.Permission() != PermissionGranted {
		return "", ErrPermissionNotGranted
	}

	reg, err := m.ensureRegistration(ctx)
	if err != nil {
		return "", err
	}

	key, err := m.applicationServerKey(ctx)
	if err != nil {
		return "", err
	}

	m.invalidateExisting(ctx, reg)

	sub, err := reg.Subscribe(ctx, SubscribeOptions{
		UserVisibleOnly:      true,
		ApplicationServerKey: key,
	})
	if err != nil {
		return "", fmt.Errorf("プッシュサービスへの購読に失敗: %w", err)
	}

	if err := m.api.SaveSubscription(ctx, sub); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.endpoint = sub.Endpoint
	m.mu.Unlock()
	return sub.Endpoint, nil
}

// applicationServerKey はサーバーから公開鍵を取得してデコードする。
func (m *Manager) applicationServerKey(ctx context.Context) ([]byte, error) {
	publicKey, err := m.api.PublicKey(ctx)
	if err != nil {
		// サーバーは鍵が未設定のとき500とエラーメッセージを返す。それ以外の失敗はそのまま返す
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusInternalServerError && statusErr.Message != "" {
			return nil, &ConfigurationError{Message: statusErr.Message}
		}
		return nil, err
	}
	if publicKey == "" {
		return nil, &ConfigurationError{Message: "サーバーが公開鍵を返しませんでした"}
	}

	key, err := DecodeApplicationServerKey(publicKey)
	if err != nil {
		return nil, &ConfigurationError{Message: err.Error()}
	}
	return key, nil
}

// invalidateExisting は既存の購読を解除する。失敗しても処理を続ける。
func (m *Manager) invalidateExisting(ctx context.Context, reg Registration) {
	existing, err := reg.Subscription(ctx)
	if err != nil {
		log.Printf("[PushClient] 既存の購読の取得に失敗: %v", err)
		return
	}
	if existing == nil {
		return
	}
	if err := reg.Unsubscribe(ctx); err != nil {
		log.Printf("[PushClient] 既存の購読の解除に失敗: endpoint=%s: %v", existing.Endpoint, err)
	}
}

// SendTest はサーバーに全購読へのテスト通知を依頼し、配信を試みた件数を返す。
// サーバーのエラーは *httpclient.StatusError として返り、ローカルの状態は変わらない。
func (m *Manager) SendTest(ctx context.Context, payload any) (int, error) {
	return m.api.SendTest(ctx, payload)
}
