package handlers

import (
	"github.com/cryptobank/backend/internal/middleware"
	"github.com/cryptobank/backend/internal/services"
	"github.com/cryptobank/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type DepositHandler struct {
	depositService *services.DepositService
}

func NewDepositHandler(depositService *services.DepositService) *DepositHandler {
	return &DepositHandler{depositService: depositService}
}

// GetAddress returns the current user's deposit address
// GET /deposits?currency_code=BTC
func (h *DepositHandler) GetAddress(c *gin.Context) {
	var req services.DepositAddressRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	address, err := h.depositService.GetDepositAddress(c.Request.Context(), middleware.GetUserID(c), req.CurrencyCode)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"crypto_address": address.CryptoAddress})
}
