// Package worker はService Workerのイベント処理をGoで表現したもの。
//
// ブラウザで動く static/sw.js と同じ振る舞いを、プラットフォームを抽象化した
// Registration と Clients の上で実装する。状態は次のように遷移する。
//
//	installing --install--> installing --activate--> activated --push/notificationclick--> handling --> idle
//
// 各イベントの非同期処理は WaitUntil で登録し、Dispatch はそれらがすべて
// 完了するまで戻らない。
//
// ブラウザで実際に動くのは static/sw.js で、cmd/ 配下のバイナリはこのパッケージを使わない。
// Handler は sw.js の振る舞いを定義してテストで検証するための参照モデルで、
// sw.js を変更したら Handler とそのテストも合わせて更新すること。
package worker
