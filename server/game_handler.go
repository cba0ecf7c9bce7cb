package server

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/onchaincommerce/minibet/config"
	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/game"
	"github.com/onchaincommerce/minibet/history"
)

// GameHandler serves read-only game data: public config, player stats,
// player history and single-transaction lookups.
type GameHandler struct {
	app    *App
	logger zerolog.Logger
}

// NewGameHandler creates a new game handler
func NewGameHandler(app *App) *GameHandler {
	return &GameHandler{
		app:    app,
		logger: app.logger.With().Str("handler", "game").Logger(),
	}
}

// ConfigResponse is the public client configuration.
// @Description Network, pricing and payout configuration
type ConfigResponse struct {
	Network         config.NetworkConfig `json:"network"`
	SpinPrice       decimal.Decimal      `json:"spinPrice"`
	Payouts         game.PayoutTable     `json:"payouts"`
	EventSignatures []string             `json:"eventSignatures"`
	HomeURL         string               `json:"homeUrl"`
}

// StatsResponse wraps a player's contract counters.
// @Description Player statistics
type StatsResponse struct {
	Player string             `json:"player"`
	Stats  game.UserStatsView `json:"stats"`
}

// HistoryResponse is one page of a player's history.
// @Description Player history page
type HistoryResponse struct {
	Player  string           `json:"player"`
	View    history.View     `json:"view"`
	Page    int              `json:"page"`
	HasMore bool             `json:"hasMore"`
	Records []game.WinRecord `json:"records"`
}

// SpinView is a decoded spin with its display fields.
// @Description Decoded spin transaction
type SpinView struct {
	game.SpinOutcome
	TierName string `json:"tierName"`
	Title    string `json:"title,omitempty"`
	TxURL    string `json:"txUrl"`
	ShareURL string `json:"shareUrl,omitempty"`
}

func newSpinView(o game.SpinOutcome, n config.NetworkConfig, homeURL string) SpinView {
	v := SpinView{
		SpinOutcome: o,
		TierName:    o.Tier.String(),
		Title:       o.Tier.Title(),
		TxURL:       game.TxURL(n.ExplorerTxURL, o.TxHash.Hex()),
	}
	if o.Tier.IsWin() {
		v.ShareURL = game.ShareURL(o.Tier, homeURL)
	}
	return v
}

// GetConfig godoc
// @Summary      Get client configuration
// @Description  Returns the active network, spin price and payout table
// @Tags         game
// @Produce      json
// @Success      200  {object}  BaseResponse{data=ConfigResponse}
// @Failure      500  {object}  ErrorResponse
// @Router       /config [get]
func (h *GameHandler) GetConfig(c *gin.Context) {
	cfg := h.app.config
	network, err := cfg.ActiveNetwork()
	if err != nil {
		InternalError(c, apperrors.Wrap(err, apperrors.ErrConfigError, "Network not configured"))
		return
	}
	OK(c, ConfigResponse{
		Network:         network,
		SpinPrice:       cfg.Game.SpinPrice,
		Payouts:         cfg.Game.Payouts,
		EventSignatures: cfg.Game.EventSignatures,
		HomeURL:         cfg.Frame.Frame.HomeURL,
	})
}

// GetStats godoc
// @Summary      Get player statistics
// @Description  Reads spins, winnings, spent and net profit from the contract
// @Tags         players
// @Produce      json
// @Param        address  path      string  true  "Player address"
// @Success      200  {object}  BaseResponse{data=StatsResponse}
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /players/{address}/stats [get]
func (h *GameHandler) GetStats(c *gin.Context) {
	stats := h.app.services.Stats
	if stats == nil {
		ServiceUnavailable(c, apperrors.New(apperrors.ErrServiceUnavailable, "stats are unavailable"))
		return
	}
	player, _ := GetPlayer(c)

	s, err := stats.UserStats(c.Request.Context(), player)
	if err != nil {
		h.logger.Error().Err(err).Str("player", player.Hex()).Msg("Failed to read user stats")
		HandleAppError(c, asRPCError(err, "Failed to read player stats"))
		return
	}
	OK(c, StatsResponse{Player: player.Hex(), Stats: s.View()})
}

// GetHistory godoc
// @Summary      Get player history
// @Description  Reconstructs a page of the player's spins from SpinResult logs
// @Tags         players
// @Produce      json
// @Param        address  path      string  true   "Player address"
// @Param        page     query     int     false  "Page number, from 1"
// @Param        view     query     string  false  "wins (default) or all"
// @Success      200  {object}  BaseResponse{data=HistoryResponse}
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /players/{address}/history [get]
func (h *GameHandler) GetHistory(c *gin.Context) {
	hist := h.app.services.History
	if hist == nil {
		ServiceUnavailable(c, apperrors.New(apperrors.ErrServiceUnavailable, "history is unavailable"))
		return
	}
	player, _ := GetPlayer(c)

	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			BadRequest(c, apperrors.New(apperrors.ErrInvalidRequest, "page must be a positive integer"))
			return
		}
		page = n
	}
	view, err := history.ParseView(c.Query("view"))
	if err != nil {
		HandleAppError(c, err)
		return
	}

	p, err := hist.Page(c.Request.Context(), player, page)
	if err != nil {
		h.logger.Error().Err(err).Str("player", player.Hex()).Int("page", page).Msg("Failed to load history")
		HandleAppError(c, err)
		return
	}

	records := history.Filter(p.Records, view)
	if records == nil {
		records = []game.WinRecord{}
	}
	OK(c, HistoryResponse{
		Player:  player.Hex(),
		View:    view,
		Page:    p.Page,
		HasMore: p.HasMore,
		Records: records,
	})
}

// GetTx godoc
// @Summary      Decode a spin transaction
// @Description  Fetches the receipt of a spin and decodes its outcome
// @Tags         game
// @Produce      json
// @Param        hash  path      string  true  "Transaction hash"
// @Success      200  {object}  BaseResponse{data=SpinView}
// @Failure      202  {object}  ErrorResponse  "Transaction not yet mined"
// @Failure      400  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /tx/{hash} [get]
func (h *GameHandler) GetTx(c *gin.Context) {
	resolver := h.app.services.Tx
	if resolver == nil {
		ServiceUnavailable(c, apperrors.New(apperrors.ErrServiceUnavailable, "transaction lookup is unavailable"))
		return
	}
	hash, ok := parseTxHash(c.Param("hash"))
	if !ok {
		BadRequest(c, apperrors.New(apperrors.ErrInvalidRequest, "invalid transaction hash"))
		return
	}

	outcome, err := resolver.Lookup(c.Request.Context(), hash)
	if err != nil {
		h.logger.Debug().Err(err).Str("tx_hash", hash.Hex()).Msg("Transaction lookup failed")
		HandleAppError(c, asRPCError(err, "Failed to fetch transaction"))
		return
	}

	network, _ := h.app.config.ActiveNetwork()
	OK(c, newSpinView(outcome, network, h.app.config.Frame.Frame.HomeURL))
}

func parseTxHash(raw string) (common.Hash, bool) {
	raw = strings.TrimSpace(raw)
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, false
	}
	return common.BytesToHash(b), true
}

// asRPCError keeps AppErrors and wraps anything else as an RPC failure.
func asRPCError(err error, message string) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Wrap(err, apperrors.ErrRPC, message)
}
