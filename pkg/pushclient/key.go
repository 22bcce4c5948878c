package pushclient

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeApplicationServerKey はbase64url形式の公開鍵をバイト列に変換する。
// パディングを補い、'-' を '+'、'_' を '/' に置き換えて標準base64としてデコードする。
func DecodeApplicationServerKey(key string) ([]byte, error) {
	padded := key + strings.Repeat("=", (4-len(key)%4)%4)
	std := strings.NewReplacer("-", "+", "_", "/").Replace(padded)

	raw, err := base64.StdEncoding.DecodeString(std)
	if err != nil {
		return nil, fmt.Errorf("公開鍵のデコードに失敗: %w", err)
	}
	return raw, nil
}
