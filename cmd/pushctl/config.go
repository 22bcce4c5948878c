package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nao1215/pushnot/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "サーバー設定の操作",
	}
	check := &cobra.Command{
		Use:   "check",
		Short: "サーバーを起動せずに設定を検証する",
		Long: `環境変数と設定ファイル（--file または PUSH_CONFIG）を読み込み、サーバーと同じ検証を行う。

VAPID鍵が欠けている場合は警告を表示する。鍵が無くてもサーバーは起動するが、
GET /push と sendTest はエラーを返す。`,
		RunE: runConfigCheck,
	}
	check.Flags().StringP("file", "f", "", "設定ファイルのパス（.yaml, .yml, .toml）")
	cfgCmd.AddCommand(check)
	return cfgCmd
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		path = os.Getenv(config.EnvConfigFile)
	}

	cfg, err := config.LoadWith(path, os.LookupEnv)
	if err != nil {
		return fmt.Errorf("設定が不正です: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, successColor.Sprint("設定は有効です"))
	fmt.Fprintf(out, "  %s %s\n", labelColor.Sprint("port:       "), cfg.Port)
	fmt.Fprintf(out, "  %s %s\n", labelColor.Sprint("store:      "), cfg.Store.Path)
	fmt.Fprintf(out, "  %s %s (ttl=%d, urgency=%s, concurrency=%d)\n",
		labelColor.Sprint("delivery:   "), cfg.Delivery.Timeout, cfg.Delivery.TTL, cfg.Delivery.Urgency, cfg.Delivery.Concurrency)
	if len(cfg.AllowedOrigins) > 0 {
		fmt.Fprintf(out, "  %s %s\n", labelColor.Sprint("origins:    "), strings.Join(cfg.AllowedOrigins, ", "))
	}
	fmt.Fprintf(out, "  %s %t\n", labelColor.Sprint("trigger:    "), cfg.TriggerSecret != "")

	if _, err := cfg.Credentials(); err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) && !cfg.Dev.EphemeralKeys {
			fmt.Fprintln(out, warnColor.Sprintf("警告: %v", err))
		}
	}
	return nil
}
