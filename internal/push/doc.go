// Package push はプッシュ通知サービスの内部実装を提供する。
//
// ブラウザから送られた購読情報（endpointと暗号化鍵）をSQLiteに保存し、
// テスト通知のリクエストを受けると保存済みの全購読へWeb Pushで配信する。
// プッシュサービスが 404/410 を返した購読は失効したものとして削除する。
//
// 主な構成要素:
//   - SQLiteStore: endpointをキーにした購読ストア
//   - Dispatcher: 全購読への並行配信と失効購読の削除
//   - Server: GET/POST /push とデモページ・Service Workerの配信
package push
