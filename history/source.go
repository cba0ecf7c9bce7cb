package history

import (
	"context"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/onchaincommerce/minibet/provider"
)

// Entry is a raw SpinResult log with its block timestamp.
type Entry struct {
	Log       types.Log
	Timestamp time.Time
}

// RawPage is what a Source returns for one page. Count is the number of raw
// records the backend returned, including ones that could not be converted;
// it drives the page-size sentinel.
type RawPage struct {
	Entries []Entry
	Count   int
}

// Source fetches one page of a player's SpinResult logs, newest first.
// Pages are numbered from 1.
type Source interface {
	Name() string
	Fetch(ctx context.Context, player common.Address, page, pageSize int) (RawPage, error)
}

// LogFetcher is the explorer API used by ExplorerSource.
type LogFetcher interface {
	GetLogs(ctx context.Context, q provider.LogQuery) ([]provider.ExplorerLog, error)
}

// ExplorerSource pages through a block explorer's getLogs endpoint.
type ExplorerSource struct {
	fetcher LogFetcher
	topic   common.Hash
	logger  zerolog.Logger
}

// NewExplorerSource queries logs whose topic0 is topic.
func NewExplorerSource(fetcher LogFetcher, topic common.Hash, logger zerolog.Logger) *ExplorerSource {
	return &ExplorerSource{
		fetcher: fetcher,
		topic:   topic,
		logger:  logger.With().Str("component", "explorer_source").Logger(),
	}
}

func (s *ExplorerSource) Name() string { return "explorer" }

// Fetch returns one explorer page.
func (s *ExplorerSource) Fetch(ctx context.Context, player common.Address, page, pageSize int) (RawPage, error) {
	logs, err := s.fetcher.GetLogs(ctx, provider.LogQuery{
		Topic0: s.topic,
		Player: player,
		Page:   page,
		Offset: pageSize,
	})
	if err != nil {
		return RawPage{}, err
	}

	out := RawPage{Count: len(logs), Entries: make([]Entry, 0, len(logs))}
	for _, raw := range logs {
		l, err := raw.ToLog()
		if err != nil {
			s.logger.Warn().Err(err).Str("tx_hash", raw.TransactionHash).Msg("Skipping malformed explorer log")
			continue
		}
		ts, err := raw.Timestamp()
		if err != nil {
			s.logger.Warn().Err(err).Str("tx_hash", raw.TransactionHash).Msg("Explorer log has no usable timestamp")
		}
		out.Entries = append(out.Entries, Entry{Log: l, Timestamp: ts})
	}
	return out, nil
}

// ChainReader is the RPC surface used by RPCSource. *chain.Client satisfies it.
type ChainReader interface {
	LatestBlock(ctx context.Context) (uint64, error)
	FilterSpinLogs(ctx context.Context, player common.Address, from, to uint64) ([]types.Log, error)
	BlockTime(ctx context.Context, number uint64) (time.Time, error)
}

// RPCSource reads logs directly from the node over the most recent
// blockRange blocks.
type RPCSource struct {
	chain      ChainReader
	blockRange uint64
	logger     zerolog.Logger
}

// NewRPCSource creates an RPC-backed source.
func NewRPCSource(chain ChainReader, blockRange uint64, logger zerolog.Logger) *RPCSource {
	return &RPCSource{
		chain:      chain,
		blockRange: blockRange,
		logger:     logger.With().Str("component", "rpc_source").Logger(),
	}
}

func (s *RPCSource) Name() string { return "rpc" }

// Fetch filters the whole window and slices out the requested page.
func (s *RPCSource) Fetch(ctx context.Context, player common.Address, page, pageSize int) (RawPage, error) {
	latest, err := s.chain.LatestBlock(ctx)
	if err != nil {
		return RawPage{}, err
	}
	var from uint64
	if s.blockRange > 0 && latest > s.blockRange {
		from = latest - s.blockRange
	}

	logs, err := s.chain.FilterSpinLogs(ctx, player, from, latest)
	if err != nil {
		return RawPage{}, err
	}
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber > logs[j].BlockNumber
		}
		return logs[i].Index > logs[j].Index
	})

	start := (page - 1) * pageSize
	if page < 1 || start >= len(logs) {
		return RawPage{}, nil
	}
	end := start + pageSize
	if end > len(logs) {
		end = len(logs)
	}

	window := logs[start:end]
	out := RawPage{Count: len(window), Entries: make([]Entry, 0, len(window))}
	for _, l := range window {
		ts, err := s.chain.BlockTime(ctx, l.BlockNumber)
		if err != nil {
			s.logger.Warn().Err(err).Uint64("block", l.BlockNumber).Msg("Block time unavailable")
		}
		out.Entries = append(out.Entries, Entry{Log: l, Timestamp: ts})
	}
	s.logger.Debug().
		Uint64("from", from).
		Uint64("to", latest).
		Int("total", len(logs)).
		Int("page", page).
		Msg("Filtered spin logs")
	return out, nil
}
