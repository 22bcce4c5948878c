package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nao1215/pushnot/internal/config"
	"github.com/nao1215/pushnot/pkg/middleware"
	"github.com/spf13/cobra"
)

// lookupEnv は環境変数を返す。テストで差し替える。
var lookupEnv = os.Getenv

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "sendTest用のトークンを発行する",
		Long: `PUSH_TRIGGER_SECRET で署名したHS256トークンを発行する。

curl などから sendTest を呼び出す場合に Authorization: Bearer <token> として使う。`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, _ := cmd.Flags().GetString("secret")
			operator, _ := cmd.Flags().GetString("operator")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			if secret == "" {
				secret = lookupEnv(config.EnvTriggerSecret)
			}
			if secret == "" {
				return errors.New("--secret または " + config.EnvTriggerSecret + " が必要です")
			}

			token, err := middleware.GenerateTriggerToken(secret, operator, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("secret", "", "署名シークレット（省略時は "+config.EnvTriggerSecret+"）")
	cmd.Flags().String("operator", "pushctl", "トークンに記録する運用者名")
	cmd.Flags().Duration("ttl", 5*time.Minute, "トークンの有効期間")
	return cmd
}
