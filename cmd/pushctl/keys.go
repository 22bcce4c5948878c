package main

import (
	"fmt"

	"github.com/nao1215/pushnot/internal/config"
	"github.com/nao1215/pushnot/internal/push"
	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "VAPID鍵の管理",
	}
	keys.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "VAPID鍵ペアを生成し、環境変数の形式で表示する",
		Long: `新しいVAPID鍵ペアを生成する。

出力はそのままシェルの環境変数として読み込める。
鍵を作り直すと既存の購読はすべて無効になるため、本番環境では一度だけ生成すること。`,
		RunE: runKeysGenerate,
	})
	return keys
}

func runKeysGenerate(cmd *cobra.Command, _ []string) error {
	publicKey, privateKey, err := push.GenerateVAPIDKeys()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s=%s\n", config.EnvVAPIDPublicKey, publicKey)
	fmt.Fprintf(out, "%s=%s\n", config.EnvVAPIDPrivateKey, privateKey)
	fmt.Fprintln(cmd.ErrOrStderr(), warnColor.Sprintf("%s も設定すること（例: mailto:ops@example.com）", config.EnvVAPIDSubject))
	return nil
}
