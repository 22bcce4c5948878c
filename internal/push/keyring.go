package push

import (
	"fmt"
	"log"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/nao1215/pushnot/internal/config"
)

// devSubject は開発用一時鍵を使う場合の送信者連絡先。
const devSubject = "mailto:dev@localhost"

// Keyring は起動時に一度だけ解決したVAPID署名情報を保持する。
// 解決に失敗した場合はそのエラーを保持し、鍵を必要とするリクエストごとに返す。
type Keyring struct {
	// creds は署名情報。errがnilの場合のみ有効。
	creds config.Credentials
	// err は解決時のエラー（通常は *config.ConfigurationError）。
	err error
	// ephemeral は開発用の一時鍵かどうか。
	ephemeral bool
}

// NewKeyring は解決済みの署名情報からKeyringを生成する。
func NewKeyring(creds config.Credentials, err error) *Keyring {
	return &Keyring{creds: creds, err: err}
}

// ResolveKeyring は設定からVAPID署名情報を解決する。
// 鍵が未設定で dev.ephemeral_keys が有効な場合に限り、一時鍵を生成する。
// それ以外で鍵が欠けている場合は、ConfigurationErrorを保持したKeyringを返す。
func ResolveKeyring(cfg *config.Config) (*Keyring, error) {
	creds, err := cfg.Credentials()
	if err == nil {
		return NewKeyring(creds, nil), nil
	}
	if !cfg.Dev.EphemeralKeys {
		log.Printf("[Push] VAPID署名情報が未設定です。GET /push と sendTest はエラーを返します: %v", err)
		return NewKeyring(config.Credentials{}, err), nil
	}

	creds = config.Credentials{
		PublicKey:  cfg.VAPID.PublicKey,
		PrivateKey: cfg.VAPID.PrivateKey,
		Subject:    cfg.VAPID.Subject,
	}
	if creds.PublicKey == "" || creds.PrivateKey == "" {
		pub, priv, err := GenerateVAPIDKeys()
		if err != nil {
			return nil, err
		}
		creds.PublicKey, creds.PrivateKey = pub, priv
	}
	if creds.Subject == "" {
		creds.Subject = devSubject
	}
	log.Printf("[Push] 開発用の一時VAPID鍵を使用します。再起動すると既存の購読は無効になります。本番環境では使用しないこと")
	return &Keyring{creds: creds, ephemeral: true}, nil
}

// Credentials は署名情報を返す。未設定の場合は解決時のエラーを返す。
func (k *Keyring) Credentials() (config.Credentials, error) {
	if k.err != nil {
		return config.Credentials{}, k.err
	}
	return k.creds, nil
}

// PublicKey はブラウザのapplicationServerKeyとして渡す公開鍵を返す。
func (k *Keyring) PublicKey() (string, error) {
	creds, err := k.Credentials()
	if err != nil {
		return "", err
	}
	return creds.PublicKey, nil
}

// Ephemeral は開発用の一時鍵かどうかを返す。
func (k *Keyring) Ephemeral() bool {
	return k.ephemeral
}

// GenerateVAPIDKeys は新しいVAPID鍵ペアをbase64url形式で生成する。
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("VAPID鍵の生成に失敗: %w", err)
	}
	return publicKey, privateKey, nil
}
