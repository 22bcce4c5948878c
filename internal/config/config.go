package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// 環境変数名。
const (
	EnvConfigFile          = "PUSH_CONFIG"
	EnvPort                = "PORT"
	EnvStorePath           = "PUSH_STORE_PATH"
	EnvVAPIDPublicKey      = "VAPID_PUBLIC_KEY"
	EnvVAPIDPrivateKey     = "VAPID_PRIVATE_KEY"
	EnvVAPIDSubject        = "VAPID_SUBJECT"
	EnvAllowedOrigins      = "PUSH_ALLOWED_ORIGINS"
	EnvDeliveryTimeout     = "PUSH_DELIVERY_TIMEOUT"
	EnvDeliveryTTL         = "PUSH_DELIVERY_TTL"
	EnvDeliveryUrgency     = "PUSH_DELIVERY_URGENCY"
	EnvDeliveryConcurrency = "PUSH_DELIVERY_CONCURRENCY"
	EnvTriggerSecret       = "PUSH_TRIGGER_SECRET"
	EnvDevEphemeralKeys    = "PUSH_DEV_EPHEMERAL_KEYS"
)

// デフォルト値。
const (
	DefaultPort                = "8087"
	DefaultDeliveryTimeout     = 10 * time.Second
	DefaultDeliveryTTL         = 60
	DefaultDeliveryUrgency     = "normal"
	DefaultDeliveryConcurrency = 16
)

// Config はプッシュサーバー全体の設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `yaml:"port" toml:"port"`
	// Store は購読ストアの設定。
	Store StoreConfig `yaml:"store" toml:"store"`
	// VAPID はプッシュ配信の署名に使う鍵と送信者情報。
	VAPID VAPIDConfig `yaml:"vapid" toml:"vapid"`
	// Delivery は配信処理の設定。
	Delivery DeliveryConfig `yaml:"delivery" toml:"delivery"`
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
	// TriggerSecret が空でない場合、sendTestにはこのシークレットで署名したトークンが必要になる。
	TriggerSecret string `yaml:"trigger_secret" toml:"trigger_secret"`
	// Dev は開発専用の設定。
	Dev DevConfig `yaml:"dev" toml:"dev"`
}

// StoreConfig は購読ストアの設定。
type StoreConfig struct {
	// Path はSQLiteデータベースファイルのパス。
	Path string `yaml:"path" toml:"path"`
}

// VAPIDConfig はVAPID鍵ペアと送信者の連絡先。
type VAPIDConfig struct {
	PublicKey  string `yaml:"public_key" toml:"public_key"`
	PrivateKey string `yaml:"private_key" toml:"private_key"`
	// Subject は "mailto:" または "https:" で始まる送信者の連絡先。
	Subject string `yaml:"subject" toml:"subject"`
}

// DeliveryConfig は配信処理の設定。
type DeliveryConfig struct {
	// Timeout は1件の配信リクエストに許す時間。
	Timeout time.Duration `yaml:"-" toml:"-"`
	// TimeoutRaw はファイルから読み込んだ "10s" 形式の値。
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
	// TTL はプッシュサービスがメッセージを保持する秒数。
	TTL int `yaml:"ttl" toml:"ttl"`
	// Urgency は very-low, low, normal, high のいずれか。
	Urgency string `yaml:"urgency" toml:"urgency"`
	// Concurrency は同時に実行する配信の上限。
	Concurrency int `yaml:"concurrency" toml:"concurrency"`
}

// DevConfig は開発専用の設定。本番環境では使用しないこと。
type DevConfig struct {
	// EphemeralKeys がtrueの場合、VAPID鍵が未設定なら起動時に一時鍵を生成する。
	EphemeralKeys bool `yaml:"ephemeral_keys" toml:"ephemeral_keys"`
}

// Credentials はプッシュ配信の署名に必要な情報。
type Credentials struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// LookupFunc は環境変数を参照する関数。os.LookupEnv と同じ形。
type LookupFunc func(key string) (string, bool)

// Default はデフォルト値を設定したConfigを返す。
func Default() *Config {
	return &Config{
		Port: DefaultPort,
		Delivery: DeliveryConfig{
			Timeout:     DefaultDeliveryTimeout,
			TTL:         DefaultDeliveryTTL,
			Urgency:     DefaultDeliveryUrgency,
			Concurrency: DefaultDeliveryConcurrency,
		},
	}
}

// Load は環境変数から設定を読み込む。PUSH_CONFIG が設定されている場合は
// そのファイルを先に読み込み、環境変数で上書きする。
func Load() (*Config, error) {
	return LoadWith(os.Getenv(EnvConfigFile), os.LookupEnv)
}

// LoadWith は指定したファイルと環境変数参照関数で設定を読み込む。
// pathが空の場合はファイルを読まない。
func LoadWith(path string, lookup LookupFunc) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(cfg, path, lookup); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, fmt.Errorf("環境変数の解析に失敗: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile は拡張子に応じてYAMLまたはTOMLの設定ファイルを読み込む。
// ファイル内の ${VAR_NAME} は環境変数の値に置き換える。
func loadFile(cfg *Config, path string, lookup LookupFunc) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	expanded := expandEnvVars(string(data), lookup)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return fmt.Errorf("YAML設定ファイルの解析に失敗: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal([]byte(expanded), cfg); err != nil {
			return fmt.Errorf("TOML設定ファイルの解析に失敗: %w", err)
		}
	default:
		return fmt.Errorf("未対応の設定ファイル形式です: %q", ext)
	}

	if cfg.Delivery.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Delivery.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("delivery.timeoutの解析に失敗: %w", err)
		}
		cfg.Delivery.Timeout = d
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars は ${VAR_NAME} を環境変数の値に置き換える。未設定の場合は空文字列になる。
func expandEnvVars(s string, lookup LookupFunc) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		v, _ := lookup(name)
		return v
	})
}

// applyEnv は設定されている環境変数でcfgを上書きする。
func applyEnv(cfg *Config, lookup LookupFunc) error {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	setString(EnvPort, &cfg.Port)
	setString(EnvStorePath, &cfg.Store.Path)
	setString(EnvVAPIDPublicKey, &cfg.VAPID.PublicKey)
	setString(EnvVAPIDPrivateKey, &cfg.VAPID.PrivateKey)
	setString(EnvVAPIDSubject, &cfg.VAPID.Subject)
	setString(EnvDeliveryUrgency, &cfg.Delivery.Urgency)
	setString(EnvTriggerSecret, &cfg.TriggerSecret)

	if v, ok := lookup(EnvAllowedOrigins); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.AllowedOrigins = origins
	}

	if v, ok := lookup(EnvDeliveryTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDeliveryTimeout, err)
		}
		cfg.Delivery.Timeout = d
	}

	if v, ok := lookup(EnvDeliveryTTL); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDeliveryTTL, err)
		}
		cfg.Delivery.TTL = n
	}

	if v, ok := lookup(EnvDeliveryConcurrency); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDeliveryConcurrency, err)
		}
		cfg.Delivery.Concurrency = n
	}

	if v, ok := lookup(EnvDevEphemeralKeys); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDevEphemeralKeys, err)
		}
		cfg.Dev.EphemeralKeys = b
	}
	return nil
}

// Validate はサーバー起動に必要な設定を検証する。
// VAPID鍵はリクエスト時に Credentials で検証するため、ここでは確認しない。
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return &ConfigurationError{Missing: []string{EnvStorePath}}
	}
	if c.Port == "" {
		return &ConfigurationError{Missing: []string{EnvPort}}
	}
	if c.Delivery.Timeout <= 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("配信タイムアウトは正の値が必要です: %s", c.Delivery.Timeout)}
	}
	if c.Delivery.TTL < 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("TTLは0以上が必要です: %d", c.Delivery.TTL)}
	}
	if c.Delivery.Concurrency <= 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("同時配信数は1以上が必要です: %d", c.Delivery.Concurrency)}
	}
	switch c.Delivery.Urgency {
	case "very-low", "low", "normal", "high":
	default:
		return &ConfigurationError{Reason: fmt.Sprintf("不正なurgencyです: %q", c.Delivery.Urgency)}
	}
	return nil
}

// Credentials はVAPID署名に必要な情報を返す。
// いずれかが欠けている場合は欠けている環境変数名を列挙したConfigurationErrorを返す。
func (c *Config) Credentials() (Credentials, error) {
	var missing []string
	if c.VAPID.PublicKey == "" {
		missing = append(missing, EnvVAPIDPublicKey)
	}
	if c.VAPID.PrivateKey == "" {
		missing = append(missing, EnvVAPIDPrivateKey)
	}
	if c.VAPID.Subject == "" {
		missing = append(missing, EnvVAPIDSubject)
	}
	if len(missing) > 0 {
		return Credentials{}, &ConfigurationError{Missing: missing}
	}
	return Credentials{
		PublicKey:  c.VAPID.PublicKey,
		PrivateKey: c.VAPID.PrivateKey,
		Subject:    c.VAPID.Subject,
	}, nil
}
