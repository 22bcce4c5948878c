// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// パニックリカバリ、CORS設定、テスト通知トリガー用トークンの発行と検証など、
// プッシュサーバーの境界で使用する処理を含む。
package middleware
