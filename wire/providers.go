package wire

import (
	"context"
	"math/big"
	"time"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/onchaincommerce/minibet/admin"
	"github.com/onchaincommerce/minibet/chain"
	"github.com/onchaincommerce/minibet/config"
	"github.com/onchaincommerce/minibet/db/redis"
	"github.com/onchaincommerce/minibet/events/kafka"
	"github.com/onchaincommerce/minibet/game"
	"github.com/onchaincommerce/minibet/history"
	"github.com/onchaincommerce/minibet/logging"
	"github.com/onchaincommerce/minibet/pkg/jackpot"
	"github.com/onchaincommerce/minibet/provider"
	"github.com/onchaincommerce/minibet/server"
	"github.com/onchaincommerce/minibet/spin"
)

const recentWinsLimit = 50

// ProvideLogger provides a zerolog.Logger
func ProvideLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.Logging)
}

// ProvideNetwork provides the active network profile
func ProvideNetwork(cfg *config.Config) (config.NetworkConfig, error) {
	return cfg.ActiveNetwork()
}

// ProvideDecoder provides the SpinResult receipt decoder
func ProvideDecoder(cfg *config.Config, network config.NetworkConfig, logger zerolog.Logger) (*chain.Decoder, error) {
	sigs, err := chain.NewSignatureSet(cfg.Game.EventSignatures)
	if err != nil {
		return nil, err
	}
	return chain.NewDecoder(network.ContractAddress, sigs, cfg.Game.Payouts, logger), nil
}

// ProvideChainClient dials the network's RPC endpoint
func ProvideChainClient(cfg *config.Config, network config.NetworkConfig, decoder *chain.Decoder, logger zerolog.Logger) (*chain.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return chain.Dial(ctx, network.RPCURL, chain.Options{
		Address:        network.ContractAddress,
		ChainID:        big.NewInt(network.ChainID),
		SpinPrice:      game.ETHToWei(cfg.Game.SpinPrice),
		ReceiptTimeout: cfg.Game.ReceiptTimeout,
		PollInterval:   cfg.Game.ReceiptPollInterval,
		Decoder:        decoder,
		Logger:         logging.WithNetwork(logger, network.Name, network.ChainID),
	})
}

// ProvideSigner provides the configured key signer. It returns a nil Signer
// when no key is configured.
func ProvideSigner(cfg *config.Config, network config.NetworkConfig) (chain.Signer, error) {
	if cfg.Signer.PrivateKey == "" {
		return nil, nil
	}
	return chain.NewKeySigner(cfg.Signer.PrivateKey, big.NewInt(network.ChainID))
}

// ProvideRedisClient provides a Redis client, or nil when Redis is disabled
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	return redis.New(cfg.Redis)
}

// ProvideHistoryCache provides the Redis page cache, or nil without Redis
func ProvideHistoryCache(cfg *config.Config, client *redis.Client, logger zerolog.Logger) history.Cache {
	if client == nil {
		return nil
	}
	return provider.NewHistoryCache(client, cfg.Network, cfg.History.CacheTTL, logger)
}

// ProvideKafkaProducer provides the event producer, or nil when Kafka is disabled
func ProvideKafkaProducer(cfg *config.Config, logger zerolog.Logger) (*kafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	return kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Logger:  logger,
	})
}

// ProvideKafkaConsumer provides the wins feed consumer, or nil when Kafka is
// disabled. The caller starts it.
func ProvideKafkaConsumer(cfg *config.Config, logger zerolog.Logger) *kafka.Consumer {
	if !cfg.Kafka.Enabled {
		return nil
	}
	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Kafka.Topic(provider.TopicAudit),
		ConsumerGroup: cfg.Kafka.ConsumerGroup + "-wins",
		Logger:        logger,
	}, kafka.NewRecentWins(recentWinsLimit))
	consumer.SetFilter(kafka.NetworkFilter(cfg.Network))
	return consumer
}

// ProvideAuditProvider provides the audit publisher; without a producer it
// drops events.
func ProvideAuditProvider(cfg *config.Config, producer *kafka.Producer, logger zerolog.Logger) *provider.AuditProvider {
	var pub provider.Publisher
	if producer != nil {
		pub = producer
	}
	return provider.NewAuditProvider(cfg, pub, logger)
}

// ProvideNotifyProvider provides the win webhook, or nil when unset
func ProvideNotifyProvider(cfg *config.Config, network config.NetworkConfig, logger zerolog.Logger) *provider.NotifyProvider {
	return provider.NewNotifyProvider(cfg.Notify, network, logger)
}

// ProvideReceiptCache provides the decoded receipt cache
func ProvideReceiptCache(cfg *config.Config) *spin.ReceiptCache {
	return spin.NewReceiptCache(cfg.Game.ReceiptCacheSize)
}

// ProvideResolver provides the transaction lookup service
func ProvideResolver(client *chain.Client, cache *spin.ReceiptCache, logger zerolog.Logger) *spin.Resolver {
	return spin.NewResolver(client, cache, logger)
}

// ProvideSession provides a spin session for the configured signer
func ProvideSession(
	cfg *config.Config,
	network config.NetworkConfig,
	client *chain.Client,
	signer chain.Signer,
	notifier *provider.NotifyProvider,
	audit *provider.AuditProvider,
	cache *spin.ReceiptCache,
	logger zerolog.Logger,
) *spin.Session {
	return spin.NewSession(spin.Options{
		Chain:        client,
		Signer:       signer,
		ExplorerName: network.ExplorerName,
		ExplorerTx:   network.ExplorerTxURL,
		HomeURL:      cfg.Frame.Frame.HomeURL,
		Notifier:     notifier,
		Publisher:    audit,
		Cache:        cache,
		Logger:       logger,
	})
}

// ProvideHistorySource selects the explorer or RPC log source
func ProvideHistorySource(cfg *config.Config, network config.NetworkConfig, client *chain.Client, decoder *chain.Decoder, logger zerolog.Logger) history.Source {
	if cfg.History.Source == "rpc" {
		return history.NewRPCSource(client, cfg.History.BlockRange, logger)
	}
	explorer := provider.NewExplorerProvider(network, logger)
	return history.NewExplorerSource(explorer, decoder.Signatures().Primary(), logger)
}

// ProvideHistoryService provides the history reconstruction service
func ProvideHistoryService(cfg *config.Config, source history.Source, decoder *chain.Decoder, cache history.Cache, logger zerolog.Logger) *history.Service {
	return history.NewService(source, decoder, cache, cfg.History.PageSize, logger)
}

// ProvideJackpotService provides the jackpot poller. The caller starts it.
func ProvideJackpotService(cfg *config.Config, client *chain.Client, logger zerolog.Logger) *jackpot.Service {
	return jackpot.NewService(jackpot.ServiceConfig{
		Reader:       client,
		PollInterval: cfg.Game.JackpotPollInterval,
		Logger:       logger,
	})
}

// ProvideAdminService provides owner operations
func ProvideAdminService(client *chain.Client, signer chain.Signer, audit *provider.AuditProvider, logger zerolog.Logger) *admin.Service {
	return admin.NewService(client, signer, audit, logger)
}

// ProvideServices collects the services behind the HTTP routes
func ProvideServices(
	client *chain.Client,
	resolver *spin.Resolver,
	hist *history.Service,
	jp *jackpot.Service,
	adm *admin.Service,
	consumer *kafka.Consumer,
) server.Services {
	svc := server.Services{
		Stats:   client,
		Tx:      resolver,
		History: hist,
		Jackpot: jp,
		Admin:   adm,
	}
	if consumer != nil {
		svc.Wins = consumer
	}
	return svc
}

// ProvideServerOptions provides server options
func ProvideServerOptions(cfg *config.Config, logger zerolog.Logger, services server.Services) server.Options {
	return server.Options{
		Config:   cfg,
		Logger:   logger,
		Services: services,
	}
}

// ProvideApp provides the main application
func ProvideApp(opts server.Options) *server.App {
	return server.New(opts)
}

// LoggingSet is the wire provider set for logging
var LoggingSet = wire.NewSet(
	ProvideLogger,
)

// ChainSet is the wire provider set for contract access
var ChainSet = wire.NewSet(
	ProvideNetwork,
	ProvideDecoder,
	ProvideChainClient,
	ProvideSigner,
)

// RedisSet is the wire provider set for Redis
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideHistoryCache,
)

// KafkaSet is the wire provider set for Kafka
var KafkaSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideKafkaConsumer,
	ProvideAuditProvider,
)

// GameSet is the wire provider set for the spin, history, jackpot and admin services
var GameSet = wire.NewSet(
	ProvideNotifyProvider,
	ProvideReceiptCache,
	ProvideResolver,
	ProvideSession,
	ProvideHistorySource,
	ProvideHistoryService,
	ProvideJackpotService,
	ProvideAdminService,
)

// ServerSet is the wire provider set for server
var ServerSet = wire.NewSet(
	ProvideServices,
	ProvideServerOptions,
	ProvideApp,
)

// FullSet includes every provider needed to build the App from a *config.Config
var FullSet = wire.NewSet(
	LoggingSet,
	ChainSet,
	RedisSet,
	KafkaSet,
	GameSet,
	ServerSet,
)
