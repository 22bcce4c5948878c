package event

import (
	"encoding/json"
	"time"
)

// Type はService Workerが受け取るプラットフォームイベントの種類を表す。
type Type string

const (
	// TypeInstall はService Workerのインストールを表す。
	TypeInstall Type = "install"
	// TypeActivate はService Workerの有効化を表す。
	TypeActivate Type = "activate"
	// TypePush はプッシュサービスからメッセージが届いたことを表す。
	TypePush Type = "push"
	// TypeNotificationClick は表示中の通知がクリックされたことを表す。
	TypeNotificationClick Type = "notificationclick"
)

// Event はService Workerに配送される1件のプラットフォームイベントを表す。
// Dataの解釈はEventTypeごとに異なり、pushイベントでは不正なJSONを含むこともある。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ。
	Data json.RawMessage `json:"data,omitempty"`
	// CreatedAt はイベントが生成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// PushData はpushイベントで届く通知ペイロード。
// 送信側が任意のJSONを送れるため、すべてのフィールドは省略可能。
type PushData struct {
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Body は通知の本文。
	Body string `json:"body"`
	// Data は通知クリック時に参照される任意のデータ。
	Data map[string]any `json:"data"`
}

// NotificationClickData はnotificationclickイベントのデータ。
type NotificationClickData struct {
	// Tag はクリックされた通知のタグ。
	Tag string `json:"tag"`
	// Data は通知表示時に渡したデータ。
	Data map[string]any `json:"data"`
}
