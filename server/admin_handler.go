package server

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "github.com/onchaincommerce/minibet/errors"
)

// AdminHandler exposes owner operations. Routes are mounted behind the JWT
// and OwnerOnly middlewares.
type AdminHandler struct {
	svc    AdminService
	logger zerolog.Logger
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(app *App, svc AdminService) *AdminHandler {
	return &AdminHandler{
		svc:    svc,
		logger: app.logger.With().Str("handler", "admin").Logger(),
	}
}

// WithdrawRequest is the withdraw payload.
// @Description Withdraw request payload
type WithdrawRequest struct {
	// Amount in ETH; "0" withdraws the whole balance
	Amount string `json:"amount" binding:"required" example:"0.05"`
}

// GetOverview godoc
// @Summary      Owner dashboard
// @Description  Returns the contract owner, balance and jackpot state
// @Tags         admin
// @Produce      json
// @Success      200  {object}  BaseResponse{data=admin.Overview}
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/overview [get]
func (h *AdminHandler) GetOverview(c *gin.Context) {
	overview, err := h.svc.Overview(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read overview")
		HandleAppError(c, asRPCError(err, "Failed to read contract state"))
		return
	}
	OK(c, overview)
}

// Withdraw godoc
// @Summary      Withdraw contract funds
// @Description  Sends ETH from the contract to the owner and waits for confirmation
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request  body      WithdrawRequest  true  "Withdraw request"
// @Success      200  {object}  BaseResponse{data=admin.WithdrawResult}
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/withdraw [post]
func (h *AdminHandler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, apperrors.New(apperrors.ErrInvalidRequest, "amount is required"))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		BadRequest(c, apperrors.New(apperrors.ErrInvalidRequest, "amount must be a decimal ETH value"))
		return
	}

	result, err := h.svc.Withdraw(c.Request.Context(), amount)
	if err != nil {
		h.logger.Error().Err(err).Str("amount", req.Amount).Msg("Withdraw failed")
		HandleAppError(c, err)
		return
	}
	OK(c, result)
}
