package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/anchorageoss/tlsn-verifier/logging"
	"github.com/anchorageoss/tlsn-verifier/server"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP verification service",
		Flags: append(configFlags(),
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Listen address",
			},
		),
		Action: runServeCommand,
	}
}

func runServeCommand(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("listen") {
		cfg.Server.Listen = cmd.String("listen")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	service, err := cfg.NewService(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to create verification service: %w", err)
	}

	maxBody := int64(cfg.Policy.MaxPresentationBytes)
	srv := server.New(service, server.Options{
		MaxBodyBytes:   maxBody,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting verifier",
		zap.String("scheme", cfg.Crypto.Scheme),
		zap.String("hash", cfg.Crypto.Hash))
	return srv.ListenAndServe(ctx, cfg.Server)
}
