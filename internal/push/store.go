package push

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	pushdb "github.com/nao1215/pushnot/internal/push/db"
	"github.com/nao1215/pushnot/pkg/migration"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound は指定したendpointの購読が存在しないことを表す。
var ErrNotFound = errors.New("購読が見つかりません")

// Keys はペイロード暗号化に必要なクライアント側の鍵。
type Keys struct {
	// P256dh はクライアントのECDH公開鍵（base64url）。
	P256dh string `json:"p256dh"`
	// Auth は認証シークレット（base64url）。
	Auth string `json:"auth"`
}

// Subscription は保存された購読レコード。
type Subscription struct {
	// ID はレコードの識別子（UUID）。
	ID string
	// Endpoint はプッシュサービスの配信先URL。ストア内で一意。
	Endpoint string
	// Keys は暗号化鍵。
	Keys Keys
	// CreatedAt は初回登録日時。
	CreatedAt time.Time
	// UpdatedAt は最終更新日時。
	UpdatedAt time.Time
}

// Store は購読レコードの永続化を担う。
// 実装はendpointの一意性を並行呼び出しの下でも保証しなければならない。
type Store interface {
	// Upsert はendpointの購読を登録する。既存の場合は鍵のみを置き換え、CreatedAtは保持する。
	Upsert(ctx context.Context, endpoint string, keys Keys) (Subscription, error)
	// List は全購読を返す。順序に意味は無い。
	List(ctx context.Context) ([]Subscription, error)
	// Remove はendpointの購読を削除する。存在しない場合は何もしない。
	Remove(ctx context.Context, endpoint string) error
	// RemoveStale はsubの鍵がまだ保存されている場合に限り購読を削除し、削除したかを返す。
	// 配信中に再登録された購読を消さないために使う。
	RemoveStale(ctx context.Context, sub Subscription) (bool, error)
	// Count は購読数を返す。
	Count(ctx context.Context) (int64, error)
}

// SQLiteStore はSQLiteを使ったStoreの実装。
type SQLiteStore struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *pushdb.Queries
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLiteStore はpathのSQLiteデータベースを開き、マイグレーションを適用する。
// 親ディレクトリが無い場合は作成する。":memory:" も指定できる。
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("データベースディレクトリの作成に失敗: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// 書き込みを1接続に直列化する。インメモリDBも接続ごとに分かれない。
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s の実行に失敗: %w", pragma, err)
		}
	}

	store, err := NewSQLiteStore(ctx, sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore は既存の接続からストアを生成し、マイグレーションを適用する。
func NewSQLiteStore(ctx context.Context, sqlDB *sql.DB) (*SQLiteStore, error) {
	if _, err := migration.Run(ctx, sqlDB, migrationsFS, "migrations"); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &SQLiteStore{
		db:      sqlDB,
		queries: pushdb.New(sqlDB),
		now:     time.Now,
	}, nil
}

// Upsert はendpointの購読を登録または更新する。
// 単一のINSERT ... ON CONFLICT文で実行するため、同じendpointの並行登録でも重複しない。
func (s *SQLiteStore) Upsert(ctx context.Context, endpoint string, keys Keys) (Subscription, error) {
	now := s.now().UnixMilli()
	row, err := s.queries.UpsertSubscription(ctx, pushdb.UpsertSubscriptionParams{
		ID:        uuid.New().String(),
		Endpoint:  endpoint,
		P256dh:    keys.P256dh,
		Auth:      keys.Auth,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Subscription{}, fmt.Errorf("購読の保存に失敗: %w", err)
	}
	return toSubscription(row), nil
}

// Get はendpointの購読を返す。存在しない場合はErrNotFoundを返す。
func (s *SQLiteStore) Get(ctx context.Context, endpoint string) (Subscription, error) {
	row, err := s.queries.GetSubscriptionByEndpoint(ctx, endpoint)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	if err != nil {
		return Subscription{}, fmt.Errorf("購読の取得に失敗: %w", err)
	}
	return toSubscription(row), nil
}

// List は全購読を返す。
func (s *SQLiteStore) List(ctx context.Context) ([]Subscription, error) {
	rows, err := s.queries.ListSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("購読一覧の取得に失敗: %w", err)
	}
	subs := make([]Subscription, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, toSubscription(row))
	}
	return subs, nil
}

// Remove はendpointの購読を削除する。存在しない場合は何もしない。
func (s *SQLiteStore) Remove(ctx context.Context, endpoint string) error {
	if _, err := s.queries.DeleteSubscriptionByEndpoint(ctx, endpoint); err != nil {
		return fmt.Errorf("購読の削除に失敗: %w", err)
	}
	return nil
}

// RemoveStale はsubと同じ鍵のまま残っている購読だけを削除する。
func (s *SQLiteStore) RemoveStale(ctx context.Context, sub Subscription) (bool, error) {
	n, err := s.queries.DeleteSubscriptionIfUnchanged(ctx, pushdb.DeleteSubscriptionIfUnchangedParams{
		Endpoint: sub.Endpoint,
		P256dh:   sub.Keys.P256dh,
		Auth:     sub.Keys.Auth,
	})
	if err != nil {
		return false, fmt.Errorf("失効した購読の削除に失敗: %w", err)
	}
	return n > 0, nil
}

// Count は購読数を返す。
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	n, err := s.queries.CountSubscriptions(ctx)
	if err != nil {
		return 0, fmt.Errorf("購読数の取得に失敗: %w", err)
	}
	return n, nil
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// toSubscription はDB行をSubscriptionに変換する。
func toSubscription(row pushdb.PushSubscription) Subscription {
	return Subscription{
		ID:       row.ID,
		Endpoint: row.Endpoint,
		Keys: Keys{
			P256dh: row.P256dh,
			Auth:   row.Auth,
		},
		CreatedAt: time.UnixMilli(row.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(row.UpdatedAt).UTC(),
	}
}
