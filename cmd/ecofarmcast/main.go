package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/comigor/ecofarmcast-go/internal/analysis"
	"github.com/comigor/ecofarmcast-go/internal/assistant"
	"github.com/comigor/ecofarmcast-go/internal/config"
	"github.com/comigor/ecofarmcast-go/internal/fieldapi"
	"github.com/comigor/ecofarmcast-go/internal/gateway"
	"github.com/comigor/ecofarmcast-go/internal/history"
	"github.com/comigor/ecofarmcast-go/internal/logger"
	"github.com/comigor/ecofarmcast-go/internal/mcpserver"
	"github.com/comigor/ecofarmcast-go/internal/server"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:          "ecofarmcast",
		Short:        "EcoFarmCast farm assistant service",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default $CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(flags), newMCPCmd(flags))
	return root
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, flags)
			if err != nil {
				return err
			}
			defer a.close()

			field := fieldapi.NewClient(a.cfg.FieldData)
			analyses := analysis.NewService(a.gen, field, a.records)
			sessions := assistant.NewManager(a.gen, a.sessionOptions())

			addr := net.JoinHostPort(a.cfg.Server.Host, a.cfg.Server.Port)
			return server.New(sessions, a.archive, analyses).ListenAndServe(ctx, addr)
		},
	}
}

func newMCPCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve one assistant session as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout carries the protocol
			logger.SetOutput(os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, flags)
			if err != nil {
				return err
			}
			defer a.close()

			sess := assistant.NewSession(uuid.NewString(), a.gen, a.sessionOptions())
			return mcpserver.Serve(ctx, sess, version, os.Stdin, os.Stdout)
		},
	}
}

type app struct {
	cfg     *config.Config
	gen     *gateway.Gateway
	archive *history.Store
	records *analysis.Store
}

func setup(ctx context.Context, flags *rootFlags) (*app, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.L.Warn("failed to load .env", "error", err)
	}

	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger.SetFormat(cfg.Log.Format)
	logger.SetLevel(cfg.Log.Level)
	if flags.logLevel != "" {
		logger.SetLevel(flags.logLevel)
	}

	gen, err := gateway.NewFromConfig(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("init llm gateway: %w", err)
	}

	storePath := cfg.Store.Path
	if storePath == "" {
		storePath = ":memory:"
	}
	records, err := analysis.OpenStore(storePath)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, gen: gen, archive: history.Open(cfg.Store.Path), records: records}, nil
}

func (a *app) sessionOptions() assistant.Options {
	return assistant.Options{
		MaxHistory:    a.cfg.Chat.MaxHistory,
		RetainContext: a.cfg.Chat.RetainContext,
		Archive:       a.archive,
	}
}

func (a *app) close() {
	if err := a.archive.Close(); err != nil {
		logger.L.Warn("closing history store", "error", err)
	}
	if err := a.records.Close(); err != nil {
		logger.L.Warn("closing analysis store", "error", err)
	}
}
