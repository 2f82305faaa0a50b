package chains

import (
	"context"

	"github.com/shopspring/decimal"
)

// GeneratedAddress is a fresh receiving address with its secret material.
// The secret leaves this package only in encrypted form.
type GeneratedAddress struct {
	Address string
	Secret  string
}

// TxInfo is the chain-agnostic view of one transaction. Pending means the
// transaction is known but not yet mined; Success is meaningful only once
// Pending is false.
type TxInfo struct {
	TxHash        string
	From          string
	To            string
	Amount        decimal.Decimal
	Confirmations int64
	Pending       bool
	Success       bool
}

// Adapter is the per-family RPC facade. All amounts are in decimal units;
// conversion to base units (wei, lamports, satoshi) happens inside the
// adapter using the configured decimals. Errors crossing this boundary are
// always classified (apperrors.Transient / Permanent).
type Adapter interface {
	// Network returns the configured network name.
	Network() string

	// GenerateAddress derives a new receiving address for a user.
	GenerateAddress(ctx context.Context, userID string) (*GeneratedAddress, error)

	// GetBalance returns the confirmed native balance of an address.
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)

	// GetTransaction looks up a transaction and its confirmation depth.
	GetTransaction(ctx context.Context, txHash string) (*TxInfo, error)

	// SendNative transfers native units from a custodial address.
	// secret is the decrypted key material produced by GenerateAddress.
	SendNative(ctx context.Context, from, to string, amount decimal.Decimal, secret string) (string, error)

	// ValidateAddress checks address format for this network.
	ValidateAddress(address string) bool

	// BlockHeight returns the current chain tip height.
	BlockHeight(ctx context.Context) (int64, error)
}
