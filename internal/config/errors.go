package config

import (
	"fmt"
	"strings"
)

// ConfigurationError は必須の設定が欠けている、または不正であることを表す。
// HTTP境界では500として返される。
type ConfigurationError struct {
	// Missing は欠けている設定の環境変数名。
	Missing []string
	// Reason は不正な値の説明。Missingが空の場合に使用する。
	Reason string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("ConfigurationError: 必須の設定がありません: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("ConfigurationError: %s", e.Reason)
}
