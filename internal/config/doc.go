// Package config はプッシュサーバーの設定を読み込む。
//
// 設定は環境変数から読み込み、PUSH_CONFIG でYAMLまたはTOMLファイルを
// 指定した場合はファイルの値を土台にして環境変数で上書きする。
// VAPID鍵やストアの接続先が欠けている場合は ConfigurationError を返し、
// 暗黙の代替値で補うことはしない。
package config
