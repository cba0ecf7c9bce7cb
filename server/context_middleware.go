package server

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/onchaincommerce/minibet/auth"
	apperrors "github.com/onchaincommerce/minibet/errors"
)

// PlayerKey is the gin context key holding the parsed :address parameter.
const PlayerKey = "player"

// PlayerAddress parses the :address path parameter into a common.Address
// and stores it under PlayerKey. Malformed addresses are rejected with 400.
func PlayerAddress() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.Param("address"))
		if !common.IsHexAddress(raw) {
			BadRequest(c, apperrors.New(apperrors.ErrInvalidRequest, "invalid player address"))
			c.Abort()
			return
		}
		c.Set(PlayerKey, common.HexToAddress(raw))
		c.Next()
	}
}

// GetPlayer returns the address stored by PlayerAddress.
func GetPlayer(c *gin.Context) (common.Address, bool) {
	v, ok := c.Get(PlayerKey)
	if !ok {
		return common.Address{}, false
	}
	addr, ok := v.(common.Address)
	return addr, ok
}

// OwnerOnly admits requests whose token address owns the contract. It must
// run after the JWT middleware.
func (a *App) OwnerOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.services.Admin == nil {
			ServiceUnavailable(c, apperrors.New(apperrors.ErrServiceUnavailable, "admin operations are disabled"))
			c.Abort()
			return
		}
		addr, ok := auth.GetAddress(c)
		if !ok {
			HandleAppError(c, apperrors.New(apperrors.ErrUnauthorized, "address not found in token"))
			c.Abort()
			return
		}
		owner, err := a.services.Admin.IsOwner(c.Request.Context(), addr)
		if err != nil {
			a.logger.Error().Err(err).Msg("Failed to read contract owner")
			HandleAppError(c, apperrors.Wrap(err, apperrors.ErrRPC, "Failed to read contract owner"))
			c.Abort()
			return
		}
		if !owner {
			a.logger.Warn().Str("address", addr.Hex()).Msg("Admin request from non-owner")
			HandleAppError(c, apperrors.New(apperrors.ErrForbidden, "caller is not the contract owner"))
			c.Abort()
			return
		}
		c.Next()
	}
}
