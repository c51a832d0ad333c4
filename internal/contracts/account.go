package contracts

import "Aporte/internal/domain/account"

type AccountCreateRequest struct {
	Name           string `json:"name" binding:"required,min=2,max=100"`
	Type           string `json:"type" binding:"required,oneof=CHECKING SAVINGS WALLET"`
	InitialBalance string `json:"initialBalance"`
}

type AccountResponse struct {
	Account *account.Account `json:"account"`
}

type AccountListResponse struct {
	Accounts []*account.Account `json:"accounts"`
	Total    int                `json:"total"`
}
