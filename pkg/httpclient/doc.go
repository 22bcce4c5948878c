// Package httpclient はJSON APIを呼び出すHTTPクライアントを提供する。
//
// pushclientやpushctlがプッシュサーバーのAPIを呼び出す際に使用する。
// 2xx以外の応答は StatusError として返し、サーバーが返した
// {"error": "..."} 形式のメッセージを呼び出し元へ伝える。
package httpclient
