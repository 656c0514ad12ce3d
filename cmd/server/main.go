package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/rostersync/internal/api"
	"github.com/mcoot/rostersync/internal/config"
	"github.com/mcoot/rostersync/internal/factory"
	"github.com/mcoot/rostersync/internal/logging"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "rostersync-server",
		Short: "Roster synchronisation service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("storage", defaults.GetString("storage.type"), "Storage backend (memory, redis, sql)")
	cmd.PersistentFlags().String("broadcast", defaults.GetString("broadcast.type"), "Broadcast channel (local, redis)")
	cmd.PersistentFlags().String("redis-url", defaults.GetString("redis.url"), "Redis URL")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "SQL driver (sqlite, mysql)")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "SQL data source name")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "storage.type", "storage")
	bindFlag(cmd, "broadcast.type", "broadcast")
	bindFlag(cmd, "redis.url", "redis-url")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.dsn", "database-dsn")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(os.Stdout, appConfig.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := factory.New(signalCtx, appConfig.FactoryConfig(logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		return err
	}
	defer app.Close(logger)

	router := api.NewRouter(api.RouterConfig{
		Logger:           logger,
		RosterController: app.RosterController,
		Broadcast:        app.Broadcast,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Address = appConfig.HTTPAddress
	server := api.NewServer(router, serverConfig, logger)

	// Open event streams only end when their hub closes
	server.OnShutdown(app.Hubs.Close)

	g, gctx := errgroup.WithContext(signalCtx)
	g.Go(func() error {
		logger.Info("server starting",
			slog.String("addr", serverConfig.Address),
			slog.String("storage", appConfig.StorageType),
			slog.String("broadcast", appConfig.BroadcastType),
		)
		return server.Start()
	})
	g.Go(func() error {
		app.Hubs.RunJanitor(gctx, appConfig.JanitorInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("server stopped")
	return nil
}
