package routes

import (
	"net/http"

	"Aporte/internal/contracts"
	"Aporte/internal/domain/account"
	appErrors "Aporte/internal/errors"
	"Aporte/internal/pkg"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (h *Handler) CreateAccount(c *gin.Context) {
	var body contracts.AccountCreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondError(c, appErrors.ParseValidationErrors(err))
		return
	}

	userID, err := h.GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	balance := decimal.Zero
	if body.InitialBalance != "" {
		balance, err = pkg.ParseAmount(body.InitialBalance)
		if err != nil {
			h.respondError(c, appErrors.NewValidationError("initial_balance", "formato inválido"))
			return
		}
	}

	ctx := c.Request.Context()
	entity, err := h.AccountService.CreateAccount(ctx, &account.CreateAccountRequest{
		UserId:         userID,
		Name:           body.Name,
		Type:           account.AccountType(body.Type),
		InitialBalance: balance,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, contracts.AccountResponse{Account: entity})
}

func (h *Handler) ListAccounts(c *gin.Context) {
	userID, err := h.GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	accounts, err := h.AccountService.GetAccountsByUserID(ctx, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, contracts.AccountListResponse{Accounts: accounts, Total: len(accounts)})
}

func (h *Handler) GetAccount(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		h.respondError(c, appErrors.NewValidationError("id", "é obrigatório"))
		return
	}

	accountID, err := pkg.ParseULID(id)
	if err != nil {
		h.respondError(c, appErrors.NewValidationError("id", "formato inválido"))
		return
	}

	userID, err := h.GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	entity, err := h.AccountService.GetAccountByID(ctx, accountID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, contracts.AccountResponse{Account: entity})
}
