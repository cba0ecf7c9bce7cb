package history

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/game"
	"github.com/onchaincommerce/minibet/metrics"
)

// DefaultPageSize is the explorer offset used when none is configured.
const DefaultPageSize = 1000

// View selects which records a listing shows.
type View string

const (
	ViewWins View = "wins"
	ViewAll  View = "all"
)

// ParseView maps a query value to a View, defaulting to wins.
func ParseView(s string) (View, error) {
	switch View(strings.ToLower(s)) {
	case "", ViewWins:
		return ViewWins, nil
	case ViewAll:
		return ViewAll, nil
	default:
		return "", apperrors.New(apperrors.ErrInvalidRequest, fmt.Sprintf("unknown view %q", s))
	}
}

// Page is one decoded history page.
type Page struct {
	Records []game.WinRecord `json:"records"`
	Page    int              `json:"page"`
	HasMore bool             `json:"hasMore"`
}

// LogDecoder decodes a SpinResult log. *chain.Decoder satisfies it.
type LogDecoder interface {
	DecodeLog(l types.Log) (game.SpinOutcome, error)
}

// Cache stores decoded pages. provider.HistoryCache satisfies it.
type Cache interface {
	LoadPage(ctx context.Context, player string, page int) ([]game.WinRecord, bool, bool)
	StorePage(ctx context.Context, player string, page int, records []game.WinRecord, hasMore bool)
	Invalidate(ctx context.Context, player string)
}

// Service reconstructs a player's spin history from a Source.
type Service struct {
	source   Source
	decoder  LogDecoder
	cache    Cache
	pageSize int
	logger   zerolog.Logger
}

// NewService creates a history service. cache may be nil.
func NewService(source Source, decoder LogDecoder, cache Cache, pageSize int, logger zerolog.Logger) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{
		source:   source,
		decoder:  decoder,
		cache:    cache,
		pageSize: pageSize,
		logger:   logger.With().Str("component", "history").Str("source", source.Name()).Logger(),
	}
}

// PageSize returns the page-size sentinel.
func (s *Service) PageSize() int {
	return s.pageSize
}

// Page fetches and decodes one page. hasMore is set when the backend returned
// exactly a full page.
func (s *Service) Page(ctx context.Context, player common.Address, page int) (Page, error) {
	if page < 1 {
		page = 1
	}
	key := strings.ToLower(player.Hex())

	if s.cache != nil {
		if records, hasMore, ok := s.cache.LoadPage(ctx, key, page); ok {
			metrics.HistoryFetches.WithLabelValues(s.source.Name(), "cache_hit").Inc()
			return Page{Records: records, Page: page, HasMore: hasMore}, nil
		}
	}

	raw, err := s.source.Fetch(ctx, player, page, s.pageSize)
	if err != nil {
		metrics.HistoryFetches.WithLabelValues(s.source.Name(), "error").Inc()
		if apperrors.IsAppError(err) {
			return Page{}, err
		}
		return Page{}, apperrors.Wrap(err, apperrors.ErrExplorer, "Failed to fetch history")
	}
	metrics.HistoryFetches.WithLabelValues(s.source.Name(), "ok").Inc()

	records := make([]game.WinRecord, 0, len(raw.Entries))
	for _, e := range raw.Entries {
		outcome, err := s.decoder.DecodeLog(e.Log)
		if err != nil {
			s.logger.Warn().Err(err).Str("tx_hash", e.Log.TxHash.Hex()).Msg("Skipping undecodable history log")
			continue
		}
		records = append(records, recordFromOutcome(outcome, e))
	}
	records = Merge(nil, records)
	hasMore := raw.Count == s.pageSize

	if s.cache != nil {
		s.cache.StorePage(ctx, key, page, records, hasMore)
	}
	return Page{Records: records, Page: page, HasMore: hasMore}, nil
}

// Invalidate drops cached pages of player.
func (s *Service) Invalidate(ctx context.Context, player string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, player)
	}
}

func recordFromOutcome(o game.SpinOutcome, e Entry) game.WinRecord {
	r := game.WinRecord{
		Result:    o.Result,
		Payout:    o.PayoutString(),
		Tier:      o.Tier,
		Timestamp: e.Timestamp,
		TxHash:    e.Log.TxHash.Hex(),
	}
	if o.SpinID != nil {
		r.SpinID = o.SpinID.String()
	}
	return r
}

// Merge combines two record lists, dropping duplicates by (txHash, spinId)
// and ordering by spinId descending.
func Merge(existing, incoming []game.WinRecord) []game.WinRecord {
	all := append(append([]game.WinRecord{}, existing...), incoming...)
	merged := lo.UniqBy(all, func(r game.WinRecord) string {
		return strings.ToLower(r.TxHash) + "/" + r.SpinID
	})
	sort.SliceStable(merged, func(i, j int) bool {
		return compareSpinID(merged[i].SpinID, merged[j].SpinID) > 0
	})
	return merged
}

func compareSpinID(a, b string) int {
	x, okA := new(big.Int).SetString(a, 10)
	y, okB := new(big.Int).SetString(b, 10)
	switch {
	case okA && okB:
		return x.Cmp(y)
	case okA:
		return 1
	case okB:
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// Filter applies a view to records.
func Filter(records []game.WinRecord, view View) []game.WinRecord {
	if view == ViewAll {
		return records
	}
	return lo.Filter(records, func(r game.WinRecord, _ int) bool {
		return r.Tier.IsWin()
	})
}
