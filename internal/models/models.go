package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositStatus deposit lifecycle status enum
type DepositStatus string

const (
	DepositStatusPending   DepositStatus = "pending"   // observed on chain, accumulating confirmations
	DepositStatusConfirmed DepositStatus = "confirmed" // reached required confirmations
	DepositStatusFailed    DepositStatus = "failed"    // rejected or dropped on chain
)

// WithdrawalStatus withdrawal lifecycle status enum
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"    // accepted, queued for processing
	WithdrawalStatusProcessing WithdrawalStatus = "processing" // burn and native send in progress
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"  // native transfer sent
	WithdrawalStatusFailed     WithdrawalStatus = "failed"     // send failed after burn, incident raised
	WithdrawalStatusCancelled  WithdrawalStatus = "cancelled"  // cancelled by user while pending
)

// IncidentKind consistency incident classification
type IncidentKind string

const (
	IncidentBurnedUnsent   IncidentKind = "burned_unsent"    // wrapped burned but native send failed
	IncidentUnmintedFlag   IncidentKind = "unminted_deposit" // deposit confirmed but mint flag never set
	IncidentStaleDeposit   IncidentKind = "stale_deposit"    // deposit pending beyond the review window
	IncidentLedgerMismatch IncidentKind = "ledger_mismatch"  // supply != minted - burned
)

// DepositAddress is a per-user receiving address on an external network.
// Rows are deactivated on rotation, never deleted; the unique index on
// (user_id, network, is_active) keeps at most one active row per pair.
type DepositAddress struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	UserID          string     `json:"user_id" gorm:"not null;uniqueIndex:idx_user_network_active"`
	Network         string     `json:"network" gorm:"not null;uniqueIndex:idx_user_network_active"`
	Address         string     `json:"address" gorm:"not null;index"`
	EncryptedSecret string     `json:"-" gorm:"type:text"`
	IsActive        *bool      `json:"is_active" gorm:"uniqueIndex:idx_user_network_active"`
	CreatedAt       time.Time  `json:"created_at"`
	DeactivatedAt   *time.Time `json:"deactivated_at"`
}

// Deposit is one observed incoming transfer. TxHash is globally unique;
// the unique index is the dedup barrier against double detection.
type Deposit struct {
	ID                    string          `json:"id" gorm:"primaryKey"`
	UserID                string          `json:"user_id" gorm:"not null;index"`
	Network               string          `json:"network" gorm:"not null;index"`
	FromAddress           string          `json:"from_address"`
	ToAddress             string          `json:"to_address" gorm:"not null;index"`
	TxHash                string          `json:"tx_hash" gorm:"not null;uniqueIndex"`
	TokenSymbol           string          `json:"token_symbol" gorm:"not null"`
	Amount                decimal.Decimal `json:"amount" gorm:"type:decimal(36,18);not null"`
	Confirmations         int64           `json:"confirmations" gorm:"default:0"`
	RequiredConfirmations int64           `json:"required_confirmations" gorm:"not null"`
	Status                DepositStatus   `json:"status" gorm:"not null;index;default:'pending'"`
	WrappedMinted         bool            `json:"wrapped_minted" gorm:"default:false"`
	WrappedAmount         decimal.Decimal `json:"wrapped_amount" gorm:"type:decimal(36,18)"`
	FlaggedAt             *time.Time      `json:"flagged_at"`
	CreatedAt             time.Time       `json:"created_at"`
	ConfirmedAt           *time.Time      `json:"confirmed_at"`
	MintedAt              *time.Time      `json:"minted_at"`
}

// Withdrawal is one burn-then-send request. WrappedBurned stays true on a
// failed send so the compensation queue can see exactly what was destroyed.
type Withdrawal struct {
	ID            string           `json:"id" gorm:"primaryKey"`
	UserID        string           `json:"user_id" gorm:"not null;index"`
	Network       string           `json:"network" gorm:"not null;index"`
	ToAddress     string           `json:"to_address" gorm:"not null"`
	TokenSymbol   string           `json:"token_symbol" gorm:"not null"`
	Amount        decimal.Decimal  `json:"amount" gorm:"type:decimal(36,18);not null"`
	Fee           decimal.Decimal  `json:"fee" gorm:"type:decimal(36,18)"`
	WrappedBurned bool             `json:"wrapped_burned" gorm:"default:false"`
	TxHash        string           `json:"tx_hash"`
	Status        WithdrawalStatus `json:"status" gorm:"not null;index;default:'pending'"`
	ErrorMsg      string           `json:"error_message" gorm:"type:text"`
	CreatedAt     time.Time        `json:"created_at"`
	BurnedAt      *time.Time       `json:"burned_at"`
	SentAt        *time.Time       `json:"sent_at"`
}

// WrappedAsset is the per-symbol supply ledger.
// Invariant after every mint/burn: TotalSupply == TotalMinted - TotalBurned.
type WrappedAsset struct {
	Symbol          string          `json:"symbol" gorm:"primaryKey"`
	OriginalNetwork string          `json:"original_network" gorm:"not null"`
	TotalSupply     decimal.Decimal `json:"total_supply" gorm:"type:decimal(36,18);not null"`
	TotalMinted     decimal.Decimal `json:"total_minted" gorm:"type:decimal(36,18);not null"`
	TotalBurned     decimal.Decimal `json:"total_burned" gorm:"type:decimal(36,18);not null"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NetworkStatus is the latest health probe result per network.
type NetworkStatus struct {
	Network     string    `json:"network" gorm:"primaryKey"`
	Online      bool      `json:"online"`
	BlockHeight int64     `json:"block_height"`
	LastChecked time.Time `json:"last_checked"`
	ErrorMsg    string    `json:"error_message" gorm:"type:text"`
}

// ConsistencyIncident is an operator work item. The service records the
// discrepancy and keeps going; resolution is always manual.
type ConsistencyIncident struct {
	ID         string          `json:"id" gorm:"primaryKey"`
	Kind       IncidentKind    `json:"kind" gorm:"not null;index"`
	RefID      string          `json:"ref_id" gorm:"not null;index"`
	Network    string          `json:"network"`
	Symbol     string          `json:"symbol"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:decimal(36,18)"`
	Detail     string          `json:"detail" gorm:"type:text"`
	Resolved   bool            `json:"resolved" gorm:"default:false;index"`
	CreatedAt  time.Time       `json:"created_at"`
	ResolvedAt *time.Time      `json:"resolved_at"`
}

// BoolPtr returns a pointer to b. Used for the IsActive tri-state column
// (true = active, NULL = deactivated) backing the partial-unique index.
func BoolPtr(b bool) *bool {
	return &b
}
