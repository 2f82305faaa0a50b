package chains

import (
	"context"
	"fmt"
	"strings"

	"bridge-backend/internal/apperrors"
	"bridge-backend/internal/config"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/shopspring/decimal"
)

// BitcoinAdapter talks to a Bitcoin Core compatible node over HTTP POST RPC.
// Address keys are generated locally; transaction construction and signing
// is delegated to the node's wallet.
type BitcoinAdapter struct {
	network string
	cfg     *config.NetworkConfig
	params  *chaincfg.Params
	client  *rpcclient.Client
}

func NewBitcoinAdapter(network string, cfg *config.NetworkConfig) (*BitcoinAdapter, error) {
	if len(cfg.RPCEndpoints) == 0 {
		return nil, fmt.Errorf("no RPC endpoints configured for %s", network)
	}

	host := strings.TrimPrefix(strings.TrimPrefix(cfg.RPCEndpoints[0], "http://"), "https://")

	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         host,
		User:         cfg.RPCUser,
		Pass:         cfg.RPCPassword,
		HTTPPostMode: true, // Bitcoin core only supports HTTP POST mode
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s RPC: %w", network, err)
	}

	return &BitcoinAdapter{
		network: network,
		cfg:     cfg,
		params:  &chaincfg.MainNetParams,
		client:  client,
	}, nil
}

func (a *BitcoinAdapter) Network() string {
	return a.network
}

func (a *BitcoinAdapter) GenerateAddress(ctx context.Context, userID string) (*GeneratedAddress, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, apperrors.Transient("bitcoin.generate_address", err)
	}

	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(key.PubKey().SerializeCompressed()), a.params)
	if err != nil {
		return nil, apperrors.Transient("bitcoin.generate_address", err)
	}

	wif, err := btcutil.NewWIF(key, a.params, true)
	if err != nil {
		return nil, apperrors.Transient("bitcoin.generate_address", err)
	}

	// Watch-only import so the node tracks UTXOs for this address.
	// Rescan disabled: the address is brand new.
	if err := a.client.ImportAddressRescan(addr.EncodeAddress(), "", false); err != nil {
		return nil, apperrors.Transient("bitcoin.generate_address", err)
	}

	return &GeneratedAddress{
		Address: addr.EncodeAddress(),
		Secret:  wif.String(),
	}, nil
}

func (a *BitcoinAdapter) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	addr, err := btcutil.DecodeAddress(address, a.params)
	if err != nil {
		return decimal.Zero, apperrors.Permanent("bitcoin.get_balance", err)
	}

	unspent, err := a.client.ListUnspentMinMaxAddresses(1, 9999999, []btcutil.Address{addr})
	if err != nil {
		return decimal.Zero, apperrors.Transient("bitcoin.get_balance", err)
	}

	total := decimal.Zero
	for _, utxo := range unspent {
		total = total.Add(decimal.NewFromFloat(utxo.Amount))
	}
	return total, nil
}

func (a *BitcoinAdapter) GetTransaction(ctx context.Context, txHash string) (*TxInfo, error) {
	hash, err := chainhash.NewHashFromStr(txHash)
	if err != nil {
		return nil, apperrors.Permanent("bitcoin.get_transaction", err)
	}

	raw, err := a.client.GetRawTransactionVerbose(hash)
	if err != nil {
		return nil, apperrors.Transient("bitcoin.get_transaction", err)
	}

	// A transaction the node knows but has not mined sits in the mempool
	// with zero confirmations. Bitcoin transactions cannot revert once mined.
	info := &TxInfo{
		TxHash:        txHash,
		Confirmations: int64(raw.Confirmations),
		Pending:       raw.Confirmations == 0,
		Success:       raw.Confirmations > 0,
	}

	// Credit amount is the sum of outputs paying the first recognized
	// address. Sender attribution needs input resolution and is skipped.
	for _, vout := range raw.Vout {
		outAddr := vout.ScriptPubKey.Address
		if outAddr == "" && len(vout.ScriptPubKey.Addresses) > 0 {
			outAddr = vout.ScriptPubKey.Addresses[0]
		}
		if outAddr == "" {
			continue
		}
		if info.To == "" {
			info.To = outAddr
		}
		if outAddr == info.To {
			info.Amount = info.Amount.Add(decimal.NewFromFloat(vout.Value))
		}
	}

	return info, nil
}

func (a *BitcoinAdapter) SendNative(ctx context.Context, from, to string, amount decimal.Decimal, secret string) (string, error) {
	addr, err := btcutil.DecodeAddress(to, a.params)
	if err != nil {
		return "", apperrors.Permanentf("bitcoin.send_native", "invalid destination address %s", to)
	}

	value, _ := amount.Float64()
	amt, err := btcutil.NewAmount(value)
	if err != nil {
		return "", apperrors.Permanent("bitcoin.send_native", err)
	}

	hash, err := a.client.SendToAddress(addr, amt)
	if err != nil {
		return "", apperrors.Transient("bitcoin.send_native", err)
	}

	return hash.String(), nil
}

func (a *BitcoinAdapter) ValidateAddress(address string) bool {
	addr, err := btcutil.DecodeAddress(address, a.params)
	return err == nil && addr.IsForNet(a.params)
}

func (a *BitcoinAdapter) BlockHeight(ctx context.Context) (int64, error) {
	height, err := a.client.GetBlockCount()
	if err != nil {
		return 0, apperrors.Transient("bitcoin.block_height", err)
	}
	return height, nil
}
