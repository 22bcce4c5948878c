package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/pushnot/internal/config"
	"github.com/nao1215/pushnot/pkg/middleware"
)

// shutdownTimeout は停止時に処理中のリクエストを待つ時間。
const shutdownTimeout = 10 * time.Second

// maxRequestBytes は POST /push のボディの上限。購読情報と通知ペイロードには十分な大きさ。
const maxRequestBytes = 64 << 10

// Server はプッシュ通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store は購読ストア。
	store Store
	// keyring はVAPID署名情報。
	keyring *Keyring
	// dispatcher は全購読への配信処理。
	dispatcher *Dispatcher
	// triggerAuth はsendTestのトークンを検証する。シークレットが未設定なら何もしない。
	triggerAuth gin.HandlerFunc
	// closer はストアなど停止時に閉じる資源。
	closer func() error
}

// NewServer は設定から新しいプッシュサーバーを生成する。
// SQLiteストアの初期化とVAPID署名情報の解決を行う。
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	store, err := OpenSQLiteStore(ctx, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("購読ストアの初期化に失敗: %w", err)
	}

	keyring, err := ResolveKeyring(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("VAPID署名情報の解決に失敗: %w", err)
	}

	deliverer := NewWebPushDeliverer(cfg.Delivery.Timeout, cfg.Delivery.TTL, cfg.Delivery.Urgency)
	dispatcher := NewDispatcher(store, deliverer, keyring, cfg.Delivery.Timeout, cfg.Delivery.Concurrency)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(middleware.CORS(cfg.AllowedOrigins))
	}

	s := &Server{
		router:      router,
		port:        cfg.Port,
		store:       store,
		keyring:     keyring,
		dispatcher:  dispatcher,
		triggerAuth: middleware.TriggerAuth(cfg.TriggerSecret),
		closer:      store.Close,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるまで待つ。
// キャンセル後は処理中のリクエストの完了を待ってから停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバーの停止に失敗: %w", err)
	}
	return nil
}

// Close はストアなどの資源を閉じる。
func (s *Server) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// 公開鍵の取得
	s.router.GET("/push", s.handleGetPublicKey())
	// 購読登録・テスト通知
	s.router.POST("/push", s.handlePost())

	// デモページとService Worker
	s.router.GET("/", s.handleStatic("index.html", "text/html; charset=utf-8"))
	s.router.GET("/app.js", s.handleStatic("app.js", "application/javascript; charset=utf-8"))
	s.router.GET("/icon.svg", s.handleStatic("icon.svg", "image/svg+xml"))
	s.router.GET("/sw.js", s.handleServiceWorker())

	// ヘルスチェック
	s.router.GET("/health", s.handleHealth())
}

// handleHealth は購読数を含むヘルスチェック結果を返すハンドラ。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.store.Count(c.Request.Context())
		if err != nil {
			log.Printf("購読数の取得エラー: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "push"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "push", "subscriptions": n})
	}
}

// handleGetPublicKey はブラウザが購読に使う公開鍵を返すハンドラ。
func (s *Server) handleGetPublicKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		publicKey, err := s.keyring.PublicKey()
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"publicKey": publicKey})
	}
}

// pushRequest は POST /push のJSON構造。
type pushRequest struct {
	// Action は "subscribe" または "sendTest"。
	Action string `json:"action"`
	// Subscription はブラウザの PushSubscription.toJSON() の値。subscribeで使用する。
	Subscription *subscriptionPayload `json:"subscription"`
	// Payload は通知として送る任意のJSON。sendTestで使用する。
	Payload json.RawMessage `json:"payload"`
}

// subscriptionPayload はブラウザから送られる購読情報。
type subscriptionPayload struct {
	// Endpoint はプッシュサービスの配信先URL。
	Endpoint string `json:"endpoint"`
	// Keys は暗号化鍵。
	Keys Keys `json:"keys"`
}

// handlePost はactionに応じて購読登録またはテスト通知を行うハンドラ。
func (s *Server) handlePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBytes)

		var req pushRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{
					"error": fmt.Sprintf("リクエストが大きすぎます（上限 %d バイト）", tooLarge.Limit),
				})
				return
			}
			s.respondError(c, &ValidationError{Message: fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		switch req.Action {
		case "subscribe":
			s.subscribe(c, req.Subscription)
		case "sendTest":
			s.sendTest(c, req.Payload)
		default:
			s.respondError(c, &UnknownActionError{Action: req.Action})
		}
	}
}

// subscribe は購読情報を検証して保存する。
func (s *Server) subscribe(c *gin.Context, sub *subscriptionPayload) {
	if err := validateSubscription(sub); err != nil {
		s.respondError(c, err)
		return
	}

	if _, err := s.store.Upsert(c.Request.Context(), sub.Endpoint, sub.Keys); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// sendTest は全購読へテスト通知を配信する。
func (s *Server) sendTest(c *gin.Context, payload json.RawMessage) {
	// subscribeは認証しないため、トークンの検証はsendTestのときだけ行う
	s.triggerAuth(c)
	if c.IsAborted() {
		return
	}
	if operator := middleware.TriggerOperator(c); operator != "" {
		log.Printf("[Push] テスト通知を受け付けました: operator=%s", operator)
	}

	sent, err := s.dispatcher.SendToAll(c.Request.Context(), payload)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent})
}

// validateSubscription は購読情報の必須項目を検証する。
func validateSubscription(sub *subscriptionPayload) error {
	if sub == nil {
		return &ValidationError{Message: "Missing subscription"}
	}
	if sub.Endpoint == "" {
		return &ValidationError{Message: "subscription.endpointが必要です"}
	}
	u, err := url.Parse(sub.Endpoint)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return &ValidationError{Message: fmt.Sprintf("subscription.endpointが不正なURLです: %q", sub.Endpoint)}
	}
	if sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return &ValidationError{Message: "subscription.keys.p256dh と subscription.keys.auth が必要です"}
	}
	return nil
}

// respondError はエラーの種類に応じたステータスコードで {"error": ...} を返す。
func (s *Server) respondError(c *gin.Context, err error) {
	var (
		cfgErr     *config.ConfigurationError
		validErr   *ValidationError
		unknownErr *UnknownActionError
	)
	switch {
	case errors.As(err, &validErr), errors.As(err, &unknownErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &cfgErr):
		log.Printf("[Push] 設定エラー: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		log.Printf("[Push] 内部エラー: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "内部サーバーエラーが発生しました"})
	}
}
