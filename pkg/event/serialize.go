package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New は新しいイベントを生成する。
// dataにはイベント固有のデータ構造体を渡す。nilの場合はDataを空のままにする。
func New(eventType Type, data any) (*Event, error) {
	var raw json.RawMessage
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("イベントデータのシリアライズに失敗: %w", err)
		}
		raw = jsonData
	}

	return &Event{
		ID:        uuid.New().String(),
		EventType: eventType,
		Data:      raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NewPush はプッシュサービスから届いた生のペイロードでpushイベントを生成する。
// ペイロードは検証せずにそのまま保持する。
func NewPush(payload []byte) *Event {
	return &Event{
		ID:        uuid.New().String(),
		EventType: TypePush,
		Data:      json.RawMessage(payload),
		CreatedAt: time.Now().UTC(),
	}
}

// DecodeData はイベントのDataフィールドを指定された型にデシリアライズする。
func DecodeData[T any](e *Event) (*T, error) {
	var data T
	if len(e.Data) == 0 {
		return nil, fmt.Errorf("イベントデータが空です: type=%s", e.EventType)
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("イベントデータのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}
