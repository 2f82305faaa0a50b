package chains

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"bridge-backend/internal/apperrors"
	"bridge-backend/internal/config"
	"bridge-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

const evmTransferGasLimit = 21000

// EVMAdapter serves all EVM networks (ethereum, bsc, polygon, ...) through
// go-ethereum's ethclient. One instance per network.
type EVMAdapter struct {
	network string
	chainID *big.Int
	cfg     *config.NetworkConfig
	client  *ethclient.Client
}

func NewEVMAdapter(network string, cfg *config.NetworkConfig) (*EVMAdapter, error) {
	if len(cfg.RPCEndpoints) == 0 {
		return nil, fmt.Errorf("no RPC endpoints configured for %s", network)
	}

	client, err := ethclient.Dial(cfg.RPCEndpoints[0])
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s RPC: %w", network, err)
	}

	return &EVMAdapter{
		network: network,
		chainID: big.NewInt(int64(cfg.ChainID)),
		cfg:     cfg,
		client:  client,
	}, nil
}

func (a *EVMAdapter) Network() string {
	return a.network
}

func (a *EVMAdapter) GenerateAddress(ctx context.Context, userID string) (*GeneratedAddress, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, apperrors.Transient("evm.generate_address", err)
	}

	return &GeneratedAddress{
		Address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Secret:  hex.EncodeToString(crypto.FromECDSA(key)),
	}, nil
}

func (a *EVMAdapter) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if !common.IsHexAddress(address) {
		return decimal.Zero, apperrors.Permanentf("evm.get_balance", "invalid address %s", address)
	}

	wei, err := a.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, apperrors.Transient("evm.get_balance", err)
	}

	return utils.FromBaseUnits(wei, a.cfg.Decimals), nil
}

func (a *EVMAdapter) GetTransaction(ctx context.Context, txHash string) (*TxInfo, error) {
	hash := common.HexToHash(txHash)

	tx, isPending, err := a.client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, apperrors.Transient("evm.get_transaction", err)
	}

	info := &TxInfo{
		TxHash: txHash,
		Amount: utils.FromBaseUnits(tx.Value(), a.cfg.Decimals),
	}
	if tx.To() != nil {
		info.To = tx.To().Hex()
	}
	if from, err := types.Sender(types.LatestSignerForChainID(a.chainID), tx); err == nil {
		info.From = from.Hex()
	}

	if isPending {
		info.Pending = true
		return info, nil
	}

	receipt, err := a.client.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, apperrors.Transient("evm.get_transaction", err)
	}

	head, err := a.client.BlockNumber(ctx)
	if err != nil {
		return nil, apperrors.Transient("evm.get_transaction", err)
	}

	info.Success = receipt.Status == types.ReceiptStatusSuccessful
	if head >= receipt.BlockNumber.Uint64() {
		info.Confirmations = int64(head-receipt.BlockNumber.Uint64()) + 1
	}

	return info, nil
}

func (a *EVMAdapter) SendNative(ctx context.Context, from, to string, amount decimal.Decimal, secret string) (string, error) {
	if !common.IsHexAddress(to) {
		return "", apperrors.Permanentf("evm.send_native", "invalid destination address %s", to)
	}

	key, err := crypto.HexToECDSA(secret)
	if err != nil {
		return "", apperrors.Permanent("evm.send_native", err)
	}

	value, err := utils.ToBaseUnits(amount, a.cfg.Decimals)
	if err != nil {
		return "", apperrors.Permanent("evm.send_native", err)
	}

	sender := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := a.client.PendingNonceAt(ctx, sender)
	if err != nil {
		return "", apperrors.Transient("evm.send_native", err)
	}

	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", apperrors.Transient("evm.send_native", err)
	}

	tx := types.NewTransaction(nonce, common.HexToAddress(to), value, evmTransferGasLimit, gasPrice, nil)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(a.chainID), key)
	if err != nil {
		return "", apperrors.Permanent("evm.send_native", err)
	}

	if err := a.client.SendTransaction(ctx, signed); err != nil {
		return "", apperrors.Transient("evm.send_native", err)
	}

	return signed.Hash().Hex(), nil
}

func (a *EVMAdapter) ValidateAddress(address string) bool {
	return common.IsHexAddress(address)
}

func (a *EVMAdapter) BlockHeight(ctx context.Context) (int64, error) {
	head, err := a.client.BlockNumber(ctx)
	if err != nil {
		return 0, apperrors.Transient("evm.block_height", err)
	}
	return int64(head), nil
}
