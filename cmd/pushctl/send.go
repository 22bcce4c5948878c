package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/pushnot/internal/config"
	"github.com/nao1215/pushnot/pkg/event"
	"github.com/nao1215/pushnot/pkg/middleware"
	"github.com/nao1215/pushnot/pkg/pushclient"
	"github.com/spf13/cobra"
)

// requestTimeout はサーバー呼び出し全体に許す時間。
const requestTimeout = 30 * time.Second

func newPublicKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "public-key",
		Short: "サーバーのVAPID公開鍵を表示する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			server, _ := cmd.Flags().GetString("server")
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			key, err := pushclient.NewAPI(server).PublicKey(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().StringP("server", "s", defaultServer, "プッシュ通知サーバーのURL")
	return cmd
}

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "全購読へテスト通知を送る",
		Long: `サーバーの sendTest を呼び出し、全購読へ通知を配信する。

サーバーに PUSH_TRIGGER_SECRET が設定されている場合は --secret で同じ値を渡すこと。
pushctl がトークンを発行して Authorization ヘッダーに付与する。`,
		RunE: runSend,
	}
	flags := cmd.Flags()
	flags.StringP("server", "s", defaultServer, "プッシュ通知サーバーのURL")
	flags.String("title", "", "通知のタイトル（省略時はサーバーのデフォルト通知）")
	flags.String("body", "", "通知の本文")
	flags.String("url", "", "クリック時に開くURL")
	flags.String("secret", "", "sendTest用トークンの署名シークレット（省略時は "+config.EnvTriggerSecret+"）")
	flags.String("operator", "pushctl", "トークンに記録する運用者名")
	return cmd
}

func runSend(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	server, _ := flags.GetString("server")
	title, _ := flags.GetString("title")
	body, _ := flags.GetString("body")
	url, _ := flags.GetString("url")
	secret, _ := flags.GetString("secret")
	operator, _ := flags.GetString("operator")

	api := pushclient.NewAPI(server)
	if secret == "" {
		secret = lookupEnv(config.EnvTriggerSecret)
	}
	if secret != "" {
		token, err := middleware.GenerateTriggerToken(secret, operator, time.Minute)
		if err != nil {
			return err
		}
		api = api.WithTriggerToken(token)
	}

	var payload *event.PushData
	if title != "" || body != "" || url != "" {
		payload = &event.PushData{Title: title, Body: body}
		if url != "" {
			payload.Data = map[string]any{"url": url}
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	var sent int
	var err error
	if payload == nil {
		sent, err = api.SendTest(ctx, nil)
	} else {
		sent, err = api.SendTest(ctx, payload)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %d件の購読へ配信しました\n", successColor.Sprint("✓"), sent)
	return nil
}
