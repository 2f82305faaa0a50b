package chains

import (
	"context"
	"fmt"

	"bridge-backend/internal/apperrors"
	"bridge-backend/internal/config"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// SolanaAdapter talks to a Solana RPC node. Confirmation depth is measured
// in slots behind the finalized tip.
type SolanaAdapter struct {
	network string
	cfg     *config.NetworkConfig
	client  *rpc.Client
}

func NewSolanaAdapter(network string, cfg *config.NetworkConfig) (*SolanaAdapter, error) {
	if len(cfg.RPCEndpoints) == 0 {
		return nil, fmt.Errorf("no RPC endpoints configured for %s", network)
	}

	return &SolanaAdapter{
		network: network,
		cfg:     cfg,
		client:  rpc.New(cfg.RPCEndpoints[0]),
	}, nil
}

func (a *SolanaAdapter) Network() string {
	return a.network
}

func (a *SolanaAdapter) GenerateAddress(ctx context.Context, userID string) (*GeneratedAddress, error) {
	wallet := solana.NewWallet()
	return &GeneratedAddress{
		Address: wallet.PublicKey().String(),
		Secret:  wallet.PrivateKey.String(),
	}, nil
}

func (a *SolanaAdapter) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return decimal.Zero, apperrors.Permanent("solana.get_balance", err)
	}

	out, err := a.client.GetBalance(ctx, pubkey, rpc.CommitmentFinalized)
	if err != nil {
		return decimal.Zero, apperrors.Transient("solana.get_balance", err)
	}

	return decimal.NewFromUint64(out.Value).Shift(-a.cfg.Decimals), nil
}

func (a *SolanaAdapter) GetTransaction(ctx context.Context, txHash string) (*TxInfo, error) {
	sig, err := solana.SignatureFromBase58(txHash)
	if err != nil {
		return nil, apperrors.Permanent("solana.get_transaction", err)
	}

	maxVersion := uint64(0)
	out, err := a.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, apperrors.Transient("solana.get_transaction", err)
	}

	slot, err := a.client.GetSlot(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, apperrors.Transient("solana.get_transaction", err)
	}

	info := &TxInfo{
		TxHash:  txHash,
		Success: out.Meta != nil && out.Meta.Err == nil,
	}
	if slot >= out.Slot {
		info.Confirmations = int64(slot-out.Slot) + 1
	}

	// Credit amount is the destination account's balance delta. Message
	// account order matches the pre/post balance arrays.
	if out.Meta != nil {
		if parsed, err := out.Transaction.GetTransaction(); err == nil {
			accounts := parsed.Message.AccountKeys
			if len(accounts) > 0 {
				info.From = accounts[0].String()
			}
			for i, key := range accounts {
				if i >= len(out.Meta.PreBalances) || i >= len(out.Meta.PostBalances) {
					break
				}
				delta := int64(out.Meta.PostBalances[i]) - int64(out.Meta.PreBalances[i])
				if i > 0 && delta > 0 {
					info.To = key.String()
					info.Amount = decimal.NewFromInt(delta).Shift(-a.cfg.Decimals)
					break
				}
			}
		}
	}

	return info, nil
}

func (a *SolanaAdapter) SendNative(ctx context.Context, from, to string, amount decimal.Decimal, secret string) (string, error) {
	key, err := solana.PrivateKeyFromBase58(secret)
	if err != nil {
		return "", apperrors.Permanent("solana.send_native", err)
	}

	dest, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return "", apperrors.Permanentf("solana.send_native", "invalid destination address %s", to)
	}

	lamports := amount.Shift(a.cfg.Decimals)
	if !lamports.Equal(lamports.Truncate(0)) || lamports.IsNegative() {
		return "", apperrors.Permanentf("solana.send_native", "invalid amount %s", amount)
	}

	recent, err := a.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", apperrors.Transient("solana.send_native", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(
				lamports.BigInt().Uint64(),
				key.PublicKey(),
				dest,
			).Build(),
		},
		recent.Value.Blockhash,
		solana.TransactionPayer(key.PublicKey()),
	)
	if err != nil {
		return "", apperrors.Permanent("solana.send_native", err)
	}

	_, err = tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(key.PublicKey()) {
			return &key
		}
		return nil
	})
	if err != nil {
		return "", apperrors.Permanent("solana.send_native", err)
	}

	sig, err := a.client.SendTransaction(ctx, tx)
	if err != nil {
		return "", apperrors.Transient("solana.send_native", err)
	}

	return sig.String(), nil
}

func (a *SolanaAdapter) ValidateAddress(address string) bool {
	_, err := solana.PublicKeyFromBase58(address)
	return err == nil
}

func (a *SolanaAdapter) BlockHeight(ctx context.Context) (int64, error) {
	slot, err := a.client.GetSlot(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return 0, apperrors.Transient("solana.block_height", err)
	}
	return int64(slot), nil
}
