// Точка входа Onboarding Portal.
// Команды: serve (HTTP API + периодический sweep), sweep (однократная сверка),
// migrate (только миграции БД). Конфигурация из переменных окружения OP_*.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bigkaa/onboarding-portal/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "onboarding-portal",
	Short:         "Onboarding Portal: приглашения, профили и сверка с Keycloak",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       config.Version,
}

func init() {
	rootCmd.AddCommand(serveCmd, sweepCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("Ошибка выполнения команды", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// loadConfig загружает конфигурацию и настраивает логирование.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := config.SetupLogger(cfg)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
