package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/onchaincommerce/minibet/docs"
	"github.com/onchaincommerce/minibet/wire"
)

// @title        minibet API
// @version      1.0
// @description  Read side of the minibet slot machine: config, player stats, win history, transaction results and the jackpot feed.

// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API for the mini-app",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
}

func runServe(opts *rootOptions) error {
	// 1. Config, logger and chain access
	d, err := opts.deps()
	if err != nil {
		return err
	}
	cfg, logger := d.cfg, d.logger

	// 2. Optional infrastructure
	redisClient, err := wire.ProvideRedisClient(cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, history pages will not be cached")
		redisClient = nil
	}
	producer, err := wire.ProvideKafkaProducer(cfg, logger)
	if err != nil {
		return err
	}
	consumer := wire.ProvideKafkaConsumer(cfg, logger)

	// 3. Services
	receipts := wire.ProvideReceiptCache(cfg)
	resolver := wire.ProvideResolver(d.client, receipts, logger)
	source := wire.ProvideHistorySource(cfg, d.network, d.client, d.decoder, logger)
	hist := wire.ProvideHistoryService(cfg, source, d.decoder, wire.ProvideHistoryCache(cfg, redisClient, logger), logger)
	jp := wire.ProvideJackpotService(cfg, d.client, logger)
	adm := wire.ProvideAdminService(d.client, d.signer, wire.ProvideAuditProvider(cfg, producer, logger), logger)

	services := wire.ProvideServices(d.client, resolver, hist, jp, adm, consumer)
	app := wire.ProvideApp(wire.ProvideServerOptions(cfg, logger, services))

	// 4. Routes
	app.UseCommonMiddlewares()
	app.RegisterHealthCheck()
	app.RegisterMetrics()
	app.RegisterManifest()
	app.RegisterSwagger(func(host string) {
		docs.SwaggerInfo.Host = host
	})
	app.RegisterAPIRoutes()

	// 5. Background feeds
	pollCtx, stopPolling := context.WithCancel(context.Background())
	jp.Start(pollCtx)
	app.OnShutdown(func() {
		stopPolling()
		jp.Stop()
	})

	if consumer != nil {
		if err := consumer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start wins Kafka consumer")
		}
		app.AttachWinFeed()
		app.OnShutdown(func() {
			_ = consumer.Stop()
		})
	}

	// 6. Cleanup & run
	app.OnShutdown(func() {
		if producer != nil {
			_ = producer.Close()
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
	})

	logger.Info().
		Str("network", d.network.Name).
		Str("contract", d.network.ContractAddress.Hex()).
		Bool("signer", d.signer != nil).
		Msg("Starting minibet API")
	return app.Run()
}
