package handlers

import (
	"github.com/cryptobank/backend/internal/middleware"
	"github.com/cryptobank/backend/internal/services"
	"github.com/cryptobank/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	accountService *services.AccountService
}

func NewAccountHandler(accountService *services.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// Create opens an account for the current user
// POST /accounts
func (h *AccountHandler) Create(c *gin.Context) {
	var req services.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	account, err := h.accountService.Create(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, account)
}

// ListOwn returns the current user's accounts
// GET /accounts/own
func (h *AccountHandler) ListOwn(c *gin.Context) {
	accounts, err := h.accountService.ListOwn(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"items": accounts})
}

// GetInfoByPeriod reports accounts opened per day
// GET /accounts/get-info-by-period
func (h *AccountHandler) GetInfoByPeriod(c *gin.Context) {
	var req services.AccountsByPeriodRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	counts, err := h.accountService.CountByPeriod(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"items": counts})
}
