package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hetarolabs/samantha/ai"
	"github.com/hetarolabs/samantha/internal/observability"
	"github.com/hetarolabs/samantha/internal/profile"
	"github.com/hetarolabs/samantha/server"
	"github.com/hetarolabs/samantha/session"
	"github.com/hetarolabs/samantha/store"
	"github.com/hetarolabs/samantha/store/db"
)

const (
	appName = "samantha"
	version = "0.3.0"
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Samantha is a personal assistant coordinating a language model, tools and per-user conversation history.",
	RunE: func(_ *cobra.Command, _ []string) error {
		prof := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version,
		}
		prof.FromEnv()
		if err := prof.Validate(); err != nil {
			return err
		}

		observability.SetupLogger(prof.IsDev())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dbDriver, err := db.NewDBDriver(prof)
		if err != nil {
			return err
		}
		durable, err := store.New(ctx, dbDriver)
		if err != nil {
			_ = dbDriver.Close()
			return err
		}
		defer func() {
			if err := durable.Close(); err != nil {
				slog.Error("failed to close durable store", "error", err)
			}
		}()

		var cache session.Backend
		if prof.RedisAddr != "" {
			client := redis.NewClient(&redis.Options{
				Addr:     prof.RedisAddr,
				Password: prof.RedisPassword,
				DB:       prof.RedisDB,
			})
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to connect to redis at %s: %w", prof.RedisAddr, err)
			}
			redisBackend := session.NewRedisBackend(client)
			defer func() {
				if err := redisBackend.Close(); err != nil {
					slog.Error("failed to close redis", "error", err)
				}
			}()
			cache = redisBackend
		}

		sessions := session.NewManager(session.Config{
			MaxCachedUsers:      prof.MaxCachedUsers,
			MaxHistoryPerUser:   prof.MaxHistoryPerUser,
			MaxDocumentsPerUser: prof.MaxDocumentsPerUser,
		}, cache, durable)

		newCompletion := func() ai.ChatCompletion {
			return ai.NewOpenAIChatCompletion(ai.OpenAIConfig{
				APIKey:  prof.OpenAIAPIKey,
				BaseURL: prof.OpenAIBaseURL,
				Model:   prof.OpenAIModel,
			})
		}

		httpServer := server.NewServer(prof, sessions, newCompletion)

		errCh := make(chan error, 1)
		go func() {
			errCh <- httpServer.Start()
		}()

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-signals:
			slog.Info("shutting down", "signal", sig.String())
		case err := <-errCh:
			if err != nil {
				return err
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.PersistentFlags().String("mode", "dev", `mode of the server, can be "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "binding address for the server")
	rootCmd.PersistentFlags().Int("port", 8080, "binding port for the server")
	rootCmd.PersistentFlags().String("data", ".", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver, "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database connection string")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
	viper.SetEnvPrefix(appName)
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
