package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/pkg/jackpot"
)

const (
	EventTypeConnected = "connected"
	EventTypeUpdated   = "updated"
	EventTypeHeartbeat = "heartbeat"
	EventTypeWin       = "win"
)

// JackpotHandler bridges jackpot.Service to HTTP routes (SSE + WebSocket).
type JackpotHandler struct {
	svc             JackpotFeed
	app             *App
	logger          zerolog.Logger
	heartbeatPeriod time.Duration
	upgrader        websocket.Upgrader
}

// NewJackpotHandler creates a jackpot handler.
func NewJackpotHandler(app *App, svc JackpotFeed) *JackpotHandler {
	return &JackpotHandler{
		svc:             svc,
		app:             app,
		logger:          app.logger.With().Str("handler", "jackpot").Logger(),
		heartbeatPeriod: 30 * time.Second,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Response is one stream message.
type Response struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Jackpot   *jackpot.Update `json:"jackpot,omitempty"`
	Win       interface{}     `json:"win,omitempty"`
}

// GetStatus godoc
// @Summary      Get jackpot status
// @Description  Returns the latest polled jackpot gate and contract balance
// @Tags         jackpot
// @Produce      json
// @Success      200  {object}  BaseResponse{data=jackpot.Update}
// @Failure      502  {object}  ErrorResponse
// @Router       /jackpot [get]
func (h *JackpotHandler) GetStatus(c *gin.Context) {
	if h.svc == nil {
		ServiceUnavailable(c, apperrors.New(apperrors.ErrServiceUnavailable, "jackpot is unavailable"))
		return
	}
	if update, ok := h.svc.Current(); ok {
		OK(c, update)
		return
	}
	update, err := h.svc.Refresh(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read jackpot status")
		HandleAppError(c, asRPCError(err, "Failed to read jackpot status"))
		return
	}
	OK(c, update)
}

// StreamUpdates opens SSE connection and streams jackpot updates.
// Route: GET /api/jackpot/updates
func (h *JackpotHandler) StreamUpdates(c *gin.Context) {
	if h.svc == nil {
		ServiceUnavailable(c, apperrors.New(apperrors.ErrServiceUnavailable, "jackpot is unavailable"))
		return
	}
	writeSSEHeaders(c)
	h.streamUpdates(c.Request.Context(), &sseSender{writer: c.Writer}, nil)
}

// StreamUpdatesWebSocket opens WebSocket connection and streams jackpot updates.
// Route: GET /api/jackpot/updates/ws
func (h *JackpotHandler) StreamUpdatesWebSocket(c *gin.Context) {
	if h.svc == nil {
		ServiceUnavailable(c, apperrors.New(apperrors.ErrServiceUnavailable, "jackpot is unavailable"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade to WebSocket")
		return
	}
	defer conn.Close() //nolint:errcheck

	writeDeadline := 10 * time.Second
	done := make(chan struct{})

	// Detect connection close
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(10 * time.Minute)) //nolint:errcheck
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.logger.Warn().Err(err).Msg("WebSocket connection closed unexpectedly")
				} else {
					h.logger.Debug().Err(err).Msg("WebSocket closed")
				}
				return
			}
		}
	}()

	// Send ping to keep connection alive
	pingTicker := time.NewTicker(30 * time.Second)
	go func() {
		defer pingTicker.Stop()
		for {
			select {
			case <-done:
				return
			case <-pingTicker.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
					h.logger.Debug().Err(err).Msg("Failed to send ping")
					return
				}
			}
		}
	}()

	sender := &wsSender{
		conn:          conn,
		done:          done,
		logger:        h.logger,
		writeDeadline: writeDeadline,
	}
	h.streamUpdates(c.Request.Context(), sender, done)
}

// streamUpdates handles the common streaming logic for both SSE and WebSocket.
func (h *JackpotHandler) streamUpdates(ctx context.Context, sender messageSender, closed <-chan struct{}) {
	updates, cancel := h.svc.Listen(ctx)
	defer cancel()

	if err := sender.Send(&Response{
		Type:      EventTypeConnected,
		Timestamp: time.Now().Unix(),
	}); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to send connected event, stopping stream")
		return
	}

	if current, ok := h.svc.Current(); ok {
		if err := sender.Send(&Response{
			Type:      EventTypeUpdated,
			Timestamp: time.Now().Unix(),
			Jackpot:   &current,
		}); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send initial jackpot")
			return
		}
	}

	heartbeat := time.NewTicker(h.heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.app.Stopping():
			return
		case <-closed:
			h.logger.Debug().Msg("WebSocket connection closed, stopping stream")
			return
		case <-heartbeat.C:
			if err := sender.Send(&Response{
				Type:      EventTypeHeartbeat,
				Timestamp: time.Now().Unix(),
			}); err != nil {
				h.logger.Warn().Err(err).Msg("Failed to send heartbeat, stopping stream")
				return
			}
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := sender.Send(&Response{
				Type:      EventTypeUpdated,
				Timestamp: time.Now().Unix(),
				Jackpot:   &update,
			}); err != nil {
				h.logger.Warn().Err(err).Msg("Failed to send jackpot update, stopping stream")
				return
			}
		}
	}
}

func writeSSEHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
}

// messageSender interface for sending messages (SSE or WebSocket).
type messageSender interface {
	Send(*Response) error
}

// sseSender sends messages via SSE.
type sseSender struct {
	writer http.ResponseWriter
}

func (s *sseSender) Send(resp *Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := s.writer.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
		return err
	}
	if f, ok := s.writer.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// wsSender sends messages via WebSocket.
type wsSender struct {
	conn          *websocket.Conn
	done          <-chan struct{}
	logger        zerolog.Logger
	writeDeadline time.Duration
}

func (s *wsSender) Send(resp *Response) error {
	select {
	case <-s.done:
		return io.EOF
	default:
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeDeadline)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to set write deadline")
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", resp.Type).Msg("Failed to marshal response")
		return err
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.logger.Debug().Err(err).Str("event_type", resp.Type).Msg("WebSocket WriteMessage failed: connection closed")
		} else {
			s.logger.Warn().
				Err(err).
				Str("event_type", resp.Type).
				Int("payload_size", len(payload)).
				Msg("WebSocket WriteMessage failed")
		}
		return err
	}
	return nil
}
