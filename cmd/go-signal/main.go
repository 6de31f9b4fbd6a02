package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/a-essam23/go-signal/internal/server"
	"github.com/a-essam23/go-signal/pkg/config"
	"github.com/a-essam23/go-signal/pkg/logging"
	"github.com/spf13/cobra"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "go-signal",
		Short:   "WebRTC signaling relay with rooms, chat and a friend graph",
		Version: version,
	}
	root.SilenceErrors = true
	root.SilenceUsage = true
	root.AddCommand(newServeCmd(), newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var configName string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the signaling server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, configName)
		},
	}
	cmd.Flags().StringVarP(&configName, "config", "c", "config", "config file name in the working directory, or a path")
	cmd.Flags().String("addr", "", "listen address, e.g. :5000")
	cmd.Flags().String("log-level", "", "debug, info, warn or error")
	cmd.Flags().String("log-format", "", "text or json")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func serve(cmd *cobra.Command, configName string) error {
	bootLogger := logging.New(logging.LevelInfo)

	cfg, err := config.Load(bootLogger, configName, cmd.Flags())
	if err != nil {
		bootLogger.Error("Failed to load configuration", slog.Any("error", err))
		return err
	}

	logger := logging.NewWithWriter(os.Stdout, logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.NewApp(logger, ctx, cfg)
	if err != nil {
		logger.Error("Failed to build application", slog.Any("error", err))
		return err
	}
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		return err
	}
	logger.Info("Application shut down successfully.")
	return nil
}
