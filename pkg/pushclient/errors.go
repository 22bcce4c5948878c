package pushclient

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported はプラットフォームがService Workerまたはプッシュに対応していないことを表す。
	ErrUnsupported = errors.New("このプラットフォームはプッシュ通知に対応していません")
	// ErrPermissionNotGranted は通知が許可されていないことを表す。
	ErrPermissionNotGranted = errors.New("通知が許可されていません")
)

// ConfigurationError はサーバーが購読に必要な公開鍵を返せなかったことを表す。
type ConfigurationError struct {
	// Message はサーバーが返したエラー、または検出した問題。
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("ConfigurationError: %s", e.Message)
}
