// Package pushclient はプッシュ通知サーバーのクライアント側を提供する。
//
// API は GET/POST /push を呼び出す型付きクライアントで、Manager と pushctl が使う。
// Manager はブラウザのページで動く static/app.js と同じ購読ライフサイクル
// （対応確認、通知許可、Service Worker登録、購読、テスト通知）を、
// 抽象化した Platform の上で実行する。
//
// ブラウザで実際に動くのは static/app.js で、cmd/ 配下のバイナリが使うのは API だけである。
// Manager は app.js の手順を定義してテストで検証するための参照モデルで、
// app.js を変更したら Manager とそのテストも合わせて更新すること。
package pushclient
