package dto

// CreateDepositAddressRequest asks for a deposit address on one network
type CreateDepositAddressRequest struct {
	Network string `json:"network" binding:"required"`
}

// CreateWithdrawalRequest submits a withdrawal of wrapped balance
type CreateWithdrawalRequest struct {
	Network   string `json:"network" binding:"required"`
	Symbol    string `json:"symbol" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	ToAddress string `json:"toAddress" binding:"required"`
}

// PaginatedResponse wraps list payloads with paging metadata
type PaginatedResponse struct {
	Items    interface{} `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}
