package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"bridge-backend/internal/chains"
	"bridge-backend/internal/config"
	"bridge-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.DepositAddress{},
		&models.Deposit{},
		&models.Withdrawal{},
		&models.WrappedAsset{},
		&models.NetworkStatus{},
		&models.ConsistencyIncident{},
	))
	return db
}

// installTestConfig swaps in a single-network config and restores the
// previous one when the test ends.
func installTestConfig(t *testing.T) {
	t.Helper()

	prev := config.AppConfig
	config.AppConfig = &config.Config{
		Blockchain: config.BlockchainConfig{
			Networks: map[string]config.NetworkConfig{
				"testnet": {
					Family:                config.FamilyEVM,
					Name:                  "Testnet",
					Symbol:                "TN",
					Decimals:              18,
					RequiredConfirmations: 12,
					PollIntervalSeconds:   1,
					MinWithdrawal:         "0.1",
					MaxWithdrawal:         "100",
					WithdrawalFee:         "0.01",
					HotWalletAddress:      "hot-wallet",
					HotWalletSecret:       "hot-secret",
					Enabled:               true,
				},
			},
		},
	}
	t.Cleanup(func() { config.AppConfig = prev })
}

// fakeAdapter is an in-memory chains.Adapter
type fakeAdapter struct {
	mu       sync.Mutex
	network  string
	balances map[string]decimal.Decimal
	height   int64
	sendHash string
	sendErr  error
	sends    int
	txs      map[string]*chains.TxInfo
	genCount int
}

func newFakeAdapter(network string) *fakeAdapter {
	return &fakeAdapter{
		network:  network,
		balances: make(map[string]decimal.Decimal),
		height:   100,
		sendHash: "0xsent",
		txs:      make(map[string]*chains.TxInfo),
	}
}

func (f *fakeAdapter) Network() string { return f.network }

func (f *fakeAdapter) GenerateAddress(ctx context.Context, userID string) (*chains.GeneratedAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genCount++
	return &chains.GeneratedAddress{
		Address: fmt.Sprintf("addr-%s-%d", userID, f.genCount),
		Secret:  "secret-" + userID,
	}, nil
}

func (f *fakeAdapter) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[address], nil
}

func (f *fakeAdapter) setBalance(address string, balance decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[address] = balance
}

func (f *fakeAdapter) GetTransaction(ctx context.Context, txHash string) (*chains.TxInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[txHash]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found", txHash)
	}
	return tx, nil
}

func (f *fakeAdapter) setTx(txHash string, tx *chains.TxInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs[txHash] = tx
}

func (f *fakeAdapter) SendNative(ctx context.Context, from, to string, amount decimal.Decimal, secret string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return f.sendHash, nil
}

func (f *fakeAdapter) ValidateAddress(address string) bool {
	return address != "" && address != "invalid"
}

func (f *fakeAdapter) BlockHeight(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.height, nil
}

func (f *fakeAdapter) setHeight(h int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.height = h
}

// fakeTrading is an in-memory clients.TradingClient
type fakeTrading struct {
	mu        sync.Mutex
	balances  map[string]decimal.Decimal // userID|symbol
	credits   int
	debits    int
	creditErr error
	debitErr  error
}

func newFakeTrading() *fakeTrading {
	return &fakeTrading{balances: make(map[string]decimal.Decimal)}
}

func (f *fakeTrading) key(userID, symbol string) string { return userID + "|" + symbol }

func (f *fakeTrading) setBalance(userID, symbol string, balance decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[f.key(userID, symbol)] = balance
}

func (f *fakeTrading) GetBalance(ctx context.Context, userID, symbol string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[f.key(userID, symbol)], nil
}

func (f *fakeTrading) Credit(ctx context.Context, userID, symbol string, amount decimal.Decimal, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.creditErr != nil {
		return f.creditErr
	}
	f.credits++
	f.balances[f.key(userID, symbol)] = f.balances[f.key(userID, symbol)].Add(amount)
	return nil
}

func (f *fakeTrading) Debit(ctx context.Context, userID, symbol string, amount decimal.Decimal, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.debitErr != nil {
		return f.debitErr
	}
	f.debits++
	f.balances[f.key(userID, symbol)] = f.balances[f.key(userID, symbol)].Sub(amount)
	return nil
}

// fakeSettler counts settlement callbacks
type fakeSettler struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeSettler) OnDepositConfirmed(ctx context.Context, depositID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, depositID)
	return nil
}

func seedTestAsset(t *testing.T, db *gorm.DB, symbol string) {
	t.Helper()
	require.NoError(t, db.Create(&models.WrappedAsset{
		Symbol:          symbol,
		OriginalNetwork: "testnet",
		TotalSupply:     decimal.Zero,
		TotalMinted:     decimal.Zero,
		TotalBurned:     decimal.Zero,
		UpdatedAt:       time.Now(),
	}).Error)
}

func seedConfirmedDeposit(t *testing.T, db *gorm.DB, amount decimal.Decimal) *models.Deposit {
	t.Helper()
	now := time.Now()
	dep := &models.Deposit{
		ID:                    uuid.New().String(),
		UserID:                "user-1",
		Network:               "testnet",
		ToAddress:             "addr-1",
		TxHash:                "bal:testnet:addr-1:" + uuid.New().String(),
		TokenSymbol:           "TN",
		Amount:                amount,
		Confirmations:         12,
		RequiredConfirmations: 12,
		Status:                models.DepositStatusConfirmed,
		CreatedAt:             now,
		ConfirmedAt:           &now,
	}
	require.NoError(t, db.Create(dep).Error)
	return dep
}
