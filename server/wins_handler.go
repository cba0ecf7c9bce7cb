package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/events/kafka"
)

// WinsHandler serves the live feed of winning spins consumed from Kafka.
type WinsHandler struct {
	feed            WinFeed
	stopping        <-chan struct{}
	network         string
	logger          zerolog.Logger
	heartbeatPeriod time.Duration
}

// NewWinsHandler creates a wins handler. feed may be nil when Kafka is
// disabled.
func NewWinsHandler(app *App, feed WinFeed) *WinsHandler {
	return &WinsHandler{
		feed:            feed,
		stopping:        app.Stopping(),
		network:         app.config.Network,
		logger:          app.logger.With().Str("handler", "wins").Logger(),
		heartbeatPeriod: 30 * time.Second,
	}
}

// GetRecent godoc
// @Summary      Recent wins
// @Description  Returns the most recent winning spins, newest first
// @Tags         wins
// @Produce      json
// @Success      200  {object}  BaseResponse{data=[]kafka.WinEvent}
// @Failure      503  {object}  ErrorResponse
// @Router       /wins/recent [get]
func (h *WinsHandler) GetRecent(c *gin.Context) {
	if h.feed == nil || h.feed.Recent() == nil {
		ServiceUnavailable(c, apperrors.New(apperrors.ErrServiceUnavailable, "win feed is disabled"))
		return
	}
	OK(c, h.feed.Recent().Snapshot())
}

// StreamWins opens an SSE connection and streams winning spins. The
// optional player query parameter limits the stream to one address.
// Route: GET /api/wins/stream?player=0x...
func (h *WinsHandler) StreamWins(c *gin.Context) {
	if h.feed == nil {
		ServiceUnavailable(c, apperrors.New(apperrors.ErrServiceUnavailable, "win feed is disabled"))
		return
	}
	player := strings.ToLower(strings.TrimSpace(c.Query("player")))

	sub := h.feed.SubscribeAll()
	defer h.feed.Unsubscribe(sub)

	writeSSEHeaders(c)
	sender := &sseSender{writer: c.Writer}
	if err := sender.Send(&Response{Type: EventTypeConnected, Timestamp: time.Now().Unix()}); err != nil {
		return
	}

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(h.heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopping:
			return
		case <-heartbeat.C:
			if err := sender.Send(&Response{Type: EventTypeHeartbeat, Timestamp: time.Now().Unix()}); err != nil {
				h.logger.Debug().Err(err).Msg("Failed to send heartbeat, stopping stream")
				return
			}
		case evt, ok := <-sub.Channel:
			if !ok {
				return
			}
			if !h.wants(evt, player) {
				continue
			}
			if err := sender.Send(&Response{
				Type:      EventTypeWin,
				Timestamp: time.Now().Unix(),
				Win:       evt,
			}); err != nil {
				h.logger.Debug().Err(err).Msg("Failed to send win, stopping stream")
				return
			}
		}
	}
}

func (h *WinsHandler) wants(evt kafka.WinEvent, player string) bool {
	if evt.Network != "" && evt.Network != h.network {
		return false
	}
	return player == "" || evt.Player == player
}
