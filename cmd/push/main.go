// プッシュ通知サービスのエントリポイント。
// 購読の登録、VAPID公開鍵の配布、全購読へのテスト通知配信を行う。
// デモページとService Workerも同じオリジンから配信する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/pushnot/internal/config"
	"github.com/nao1215/pushnot/internal/push"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := push.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("プッシュサーバーの初期化に失敗: %v", err)
	}
	defer server.Close()

	log.Printf("プッシュ通知サービスを起動します: :%s", cfg.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("プッシュ通知サービスの起動に失敗: %v", err)
	}
	log.Printf("プッシュ通知サービスを停止しました")
}
