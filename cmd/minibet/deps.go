package main

import (
	"github.com/rs/zerolog"

	"github.com/onchaincommerce/minibet/chain"
	"github.com/onchaincommerce/minibet/config"
	"github.com/onchaincommerce/minibet/wire"
)

// deps is the object graph shared by the one-shot commands.
type deps struct {
	cfg     *config.Config
	logger  zerolog.Logger
	network config.NetworkConfig
	decoder *chain.Decoder
	client  *chain.Client
	signer  chain.Signer
}

func (o *rootOptions) deps() (*deps, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := wire.ProvideLogger(cfg)

	network, err := wire.ProvideNetwork(cfg)
	if err != nil {
		return nil, err
	}
	decoder, err := wire.ProvideDecoder(cfg, network, logger)
	if err != nil {
		return nil, err
	}
	client, err := wire.ProvideChainClient(cfg, network, decoder, logger)
	if err != nil {
		return nil, err
	}
	signer, err := wire.ProvideSigner(cfg, network)
	if err != nil {
		return nil, err
	}
	return &deps{
		cfg:     cfg,
		logger:  logger,
		network: network,
		decoder: decoder,
		client:  client,
		signer:  signer,
	}, nil
}
