// pushctl はプッシュ通知サービスの運用CLI。
//
// 使い方:
//
//	pushctl keys generate                          # VAPID鍵ペアを生成する
//	pushctl public-key --server http://localhost:8087
//	pushctl send --server http://localhost:8087 --title Hi --body "本文"
//	pushctl token --secret $PUSH_TRIGGER_SECRET   # sendTest用トークンを発行する
//	pushctl config check                           # 設定を検証する
//	pushctl version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ビルド時に -ldflags "-X main.version=..." で設定される。
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// defaultServer は接続先サーバーのデフォルト。
const defaultServer = "http://localhost:8087"

// newRootCmd はpushctlのルートコマンドを生成する。
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pushctl",
		Short:         "プッシュ通知サービスの運用CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newKeysCmd(),
		newPublicKeyCmd(),
		newSendCmd(),
		newTokenCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "バージョン情報を表示する",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pushctl %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorColor.Sprint("エラー: ")+err.Error())
		os.Exit(1)
	}
}
