package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"bridge-backend/internal/apperrors"
	"bridge-backend/internal/chains"
	"bridge-backend/internal/clients"
	"bridge-backend/internal/config"
	"bridge-backend/internal/events"
	"bridge-backend/internal/metrics"
	"bridge-backend/internal/models"
	"bridge-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WithdrawRequest is the validated input for a new withdrawal
type WithdrawRequest struct {
	UserID    string
	Network   string
	Symbol    string
	Amount    decimal.Decimal
	ToAddress string
}

// SettlementService orchestrates both value flows: mint-and-credit when a
// deposit confirms, debit-burn-and-send when a user withdraws. Every state
// transition is a compare-and-set so a crashed or concurrent run can never
// double-settle.
type SettlementService struct {
	db             *gorm.DB
	depositRepo    repository.DepositRepository
	withdrawalRepo repository.WithdrawalRepository
	assetRepo      repository.WrappedAssetRepository
	incidentRepo   repository.IncidentRepository
	trading        clients.TradingClient
	registry       *chains.Registry
	push           *WebSocketPushService
	cfg            *config.WithdrawConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(
	db *gorm.DB,
	depositRepo repository.DepositRepository,
	withdrawalRepo repository.WithdrawalRepository,
	assetRepo repository.WrappedAssetRepository,
	incidentRepo repository.IncidentRepository,
	trading clients.TradingClient,
	registry *chains.Registry,
	push *WebSocketPushService,
	cfg *config.WithdrawConfig,
) *SettlementService {
	return &SettlementService{
		db:             db,
		depositRepo:    depositRepo,
		withdrawalRepo: withdrawalRepo,
		assetRepo:      assetRepo,
		incidentRepo:   incidentRepo,
		trading:        trading,
		registry:       registry,
		push:           push,
		cfg:            cfg,
		stopCh:         make(chan struct{}),
	}
}

// ==================== Deposit settlement ====================

// OnDepositConfirmed mints the wrapped amount and credits the trading
// balance for a confirmed deposit. Flag flip and ledger mint share one
// transaction; a second invocation loses the CAS and returns nil.
func (s *SettlementService) OnDepositConfirmed(ctx context.Context, depositID string) error {
	deposit, err := s.depositRepo.GetByID(ctx, depositID)
	if err != nil {
		return fmt.Errorf("failed to load deposit %s: %w", depositID, err)
	}

	netCfg, err := config.GetNetworkConfig(deposit.Network)
	if err != nil {
		return err
	}

	wrappedSymbol := netCfg.WrappedSymbol()
	wrappedAmount := deposit.Amount // 1:1 peg

	minted := false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		won, err := s.depositRepo.MarkMintedTx(tx, depositID, wrappedAmount)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		minted = true
		return s.assetRepo.MintTx(tx, wrappedSymbol, wrappedAmount)
	})
	if err != nil {
		return fmt.Errorf("mint transaction failed for deposit %s: %w", depositID, err)
	}
	if !minted {
		return nil
	}

	metrics.WrappedMinted.WithLabelValues(wrappedSymbol).Add(amountAsFloat(wrappedAmount))
	log.Printf("🪙 Minted %s %s for deposit %s (user %s)", wrappedAmount, wrappedSymbol, depositID, deposit.UserID)

	if err := s.trading.Credit(ctx, deposit.UserID, wrappedSymbol, wrappedAmount, depositID); err != nil {
		// The mint is committed; a missing credit is an operator problem,
		// not a reason to unwind the ledger.
		if _, raiseErr := s.incidentRepo.Raise(ctx, models.IncidentLedgerMismatch, depositID, deposit.Network, wrappedSymbol, wrappedAmount,
			fmt.Sprintf("minted but trading credit failed: %v", err)); raiseErr == nil {
			metrics.ConsistencyIncidents.WithLabelValues(string(models.IncidentLedgerMismatch)).Inc()
		}
		log.Printf("❌ Trading credit failed for deposit %s: %v", depositID, err)
		return err
	}

	events.PublishDepositSettled(depositID, deposit.UserID, deposit.Network, deposit.TxHash,
		deposit.TokenSymbol, wrappedSymbol, deposit.Amount, wrappedAmount)

	if s.push != nil {
		settled, err := s.depositRepo.GetByID(ctx, depositID)
		if err == nil {
			s.push.BroadcastDepositUpdate(settled, "settled")
		}
	}
	return nil
}

// ManualConfirm force-confirms a deposit and settles it. Admin escape hatch
// for deposits stuck behind RPC trouble.
func (s *SettlementService) ManualConfirm(ctx context.Context, depositID string) error {
	won, err := s.depositRepo.MarkConfirmed(ctx, depositID)
	if err != nil {
		return err
	}
	if !won {
		return apperrors.Permanentf("settlement.manual_confirm", "deposit %s is not pending", depositID)
	}

	log.Printf("👮 Deposit %s manually confirmed", depositID)
	return s.OnDepositConfirmed(ctx, depositID)
}

// ==================== Withdrawal intake ====================

// Withdraw validates and accepts a withdrawal request. The wrapped balance
// (amount plus fee) is debited synchronously; burn and native send happen
// in the processor loop.
func (s *SettlementService) Withdraw(ctx context.Context, req WithdrawRequest) (*models.Withdrawal, error) {
	netCfg, err := config.GetNetworkConfig(req.Network)
	if err != nil {
		return nil, apperrors.Permanent("settlement.withdraw", err)
	}

	wrappedSymbol := netCfg.WrappedSymbol()
	if req.Symbol != wrappedSymbol {
		return nil, apperrors.Permanentf("settlement.withdraw", "symbol %s is not withdrawable on %s (expected %s)", req.Symbol, req.Network, wrappedSymbol)
	}
	if !req.Amount.IsPositive() {
		return nil, apperrors.Permanentf("settlement.withdraw", "amount must be positive, got %s", req.Amount)
	}

	adapter, err := s.registry.Get(req.Network)
	if err != nil {
		return nil, apperrors.Permanent("settlement.withdraw", err)
	}
	if !adapter.ValidateAddress(req.ToAddress) {
		return nil, apperrors.Permanentf("settlement.withdraw", "invalid %s address: %s", req.Network, req.ToAddress)
	}

	if min, err := decimal.NewFromString(netCfg.MinWithdrawal); err == nil && !min.IsZero() && req.Amount.LessThan(min) {
		return nil, apperrors.Permanentf("settlement.withdraw", "amount %s below minimum %s", req.Amount, min)
	}
	if max, err := decimal.NewFromString(netCfg.MaxWithdrawal); err == nil && !max.IsZero() && req.Amount.GreaterThan(max) {
		return nil, apperrors.Permanentf("settlement.withdraw", "amount %s above maximum %s", req.Amount, max)
	}

	fee := decimal.Zero
	if f, err := decimal.NewFromString(netCfg.WithdrawalFee); err == nil {
		fee = f
	}
	total := req.Amount.Add(fee)

	if limit, err := decimal.NewFromString(s.cfg.HourlyLimit); err == nil && !limit.IsZero() {
		recent, err := s.withdrawalRepo.SumRequestedSince(ctx, req.UserID, time.Now().Add(-time.Hour))
		if err != nil {
			return nil, err
		}
		if recent.Add(req.Amount).GreaterThan(limit) {
			return nil, apperrors.Permanentf("settlement.withdraw", "hourly withdrawal limit %s exceeded", limit)
		}
	}

	balance, err := s.trading.GetBalance(ctx, req.UserID, wrappedSymbol)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(total) {
		return nil, apperrors.InsufficientBalance("settlement.withdraw",
			fmt.Errorf("balance %s %s cannot cover %s plus fee %s", balance, wrappedSymbol, req.Amount, fee))
	}

	withdrawal := &models.Withdrawal{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		Network:     req.Network,
		ToAddress:   req.ToAddress,
		TokenSymbol: wrappedSymbol,
		Amount:      req.Amount,
		Fee:         fee,
		Status:      models.WithdrawalStatusPending,
		CreatedAt:   time.Now(),
	}

	if err := s.trading.Debit(ctx, req.UserID, wrappedSymbol, total, withdrawal.ID); err != nil {
		return nil, err
	}

	if err := s.withdrawalRepo.Create(ctx, withdrawal); err != nil {
		// Compensate the debit so the user is whole.
		if creditErr := s.trading.Credit(ctx, req.UserID, wrappedSymbol, total, withdrawal.ID); creditErr != nil {
			if _, raiseErr := s.incidentRepo.Raise(ctx, models.IncidentLedgerMismatch, withdrawal.ID, req.Network, wrappedSymbol, total,
				fmt.Sprintf("debited but withdrawal insert and re-credit both failed: insert=%v credit=%v", err, creditErr)); raiseErr == nil {
				metrics.ConsistencyIncidents.WithLabelValues(string(models.IncidentLedgerMismatch)).Inc()
			}
		}
		return nil, err
	}

	metrics.WithdrawalsRequested.WithLabelValues(req.Network).Inc()
	log.Printf("📤 Withdrawal accepted: %s user=%s %s %s to %s (fee %s)", withdrawal.ID, req.UserID, req.Amount, wrappedSymbol, req.ToAddress, fee)

	if s.push != nil {
		s.push.BroadcastWithdrawalUpdate(withdrawal, "created")
	}
	return withdrawal, nil
}

// Cancel cancels a pending withdrawal and re-credits the debited balance.
// Once the processor claims the row the burn may be underway and the
// cancellation is rejected.
func (s *SettlementService) Cancel(ctx context.Context, userID, withdrawalID string) (*models.Withdrawal, error) {
	won, err := s.withdrawalRepo.CancelPending(ctx, userID, withdrawalID)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, apperrors.Permanentf("settlement.cancel", "withdrawal %s is not pending or not owned by caller", withdrawalID)
	}

	withdrawal, err := s.withdrawalRepo.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}

	total := withdrawal.Amount.Add(withdrawal.Fee)
	if err := s.trading.Credit(ctx, userID, withdrawal.TokenSymbol, total, withdrawalID); err != nil {
		if _, raiseErr := s.incidentRepo.Raise(ctx, models.IncidentLedgerMismatch, withdrawalID, withdrawal.Network, withdrawal.TokenSymbol, total,
			fmt.Sprintf("cancelled but re-credit failed: %v", err)); raiseErr == nil {
			metrics.ConsistencyIncidents.WithLabelValues(string(models.IncidentLedgerMismatch)).Inc()
		}
		return nil, err
	}

	log.Printf("🚫 Withdrawal cancelled: %s (user %s, re-credited %s %s)", withdrawalID, userID, total, withdrawal.TokenSymbol)

	if s.push != nil {
		s.push.BroadcastWithdrawalUpdate(withdrawal, "cancelled")
	}
	return withdrawal, nil
}

// ==================== Withdrawal processor ====================

// Start launches the withdrawal processor loop
func (s *SettlementService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	interval := 15 * time.Second
	if s.cfg.ProcessIntervalS > 0 {
		interval = time.Duration(s.cfg.ProcessIntervalS) * time.Second
	}

	log.Printf("🚀 Withdrawal processor started (interval: %v)", interval)
	go s.processLoop(interval)
}

// Stop halts the processor loop
func (s *SettlementService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	log.Printf("🛑 Withdrawal processor stopped")
}

func (s *SettlementService) processLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.processBatch(context.Background())
		}
	}
}

func (s *SettlementService) processBatch(ctx context.Context) {
	batch := s.cfg.MaxBatch
	if batch <= 0 {
		batch = 20
	}

	ids, err := s.withdrawalRepo.FindPendingIDs(ctx, batch)
	if err != nil {
		log.Printf("❌ [Withdraw] Failed to load pending withdrawals: %v", err)
		return
	}

	for _, id := range ids {
		if err := s.ProcessWithdrawal(ctx, id); err != nil {
			log.Printf("❌ [Withdraw] Processing %s failed: %v", id, err)
		}
	}
}

// ProcessWithdrawal claims one pending withdrawal, burns the wrapped amount
// and sends native funds. The claim CAS makes concurrent processors safe;
// the losing claimer returns immediately.
func (s *SettlementService) ProcessWithdrawal(ctx context.Context, withdrawalID string) error {
	claimed, err := s.withdrawalRepo.ClaimPending(ctx, withdrawalID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	withdrawal, err := s.withdrawalRepo.GetByID(ctx, withdrawalID)
	if err != nil {
		return err
	}

	if s.push != nil {
		s.push.BroadcastWithdrawalUpdate(withdrawal, "processing")
	}

	// Burn flag and ledger movement in one transaction.
	err = s.db.Transaction(func(tx *gorm.DB) error {
		burned, err := s.withdrawalRepo.MarkBurned(tx, withdrawalID)
		if err != nil {
			return err
		}
		if !burned {
			return apperrors.Consistency("settlement.burn", fmt.Errorf("withdrawal %s not burnable", withdrawalID))
		}
		return s.assetRepo.BurnTx(tx, withdrawal.TokenSymbol, withdrawal.Amount)
	})
	if err != nil {
		// Nothing was burned; fail the row and make the user whole.
		s.failBeforeBurn(ctx, withdrawal, err)
		return err
	}

	metrics.WrappedBurned.WithLabelValues(withdrawal.TokenSymbol).Add(amountAsFloat(withdrawal.Amount))
	log.Printf("🔥 Burned %s %s for withdrawal %s", withdrawal.Amount, withdrawal.TokenSymbol, withdrawalID)

	txHash, err := s.sendNative(ctx, withdrawal)
	if err != nil {
		s.failAfterBurn(ctx, withdrawal, err)
		return err
	}

	completed, err := s.withdrawalRepo.MarkCompleted(ctx, withdrawalID, txHash)
	if err != nil {
		return err
	}
	if !completed {
		return apperrors.Consistency("settlement.complete", fmt.Errorf("withdrawal %s not completable after send %s", withdrawalID, txHash))
	}

	metrics.WithdrawalsCompleted.WithLabelValues(withdrawal.Network).Inc()
	log.Printf("✅ Withdrawal completed: %s tx=%s", withdrawalID, txHash)

	events.PublishWithdrawalCompleted(withdrawalID, withdrawal.UserID, withdrawal.Network,
		withdrawal.ToAddress, withdrawal.TokenSymbol, txHash, withdrawal.Amount)

	if s.push != nil {
		final, err := s.withdrawalRepo.GetByID(ctx, withdrawalID)
		if err == nil {
			s.push.BroadcastWithdrawalUpdate(final, "completed")
		}
	}
	return nil
}

// sendNative pushes the native transfer out, retrying transient failures a
// bounded number of times against the same burn record.
func (s *SettlementService) sendNative(ctx context.Context, withdrawal *models.Withdrawal) (string, error) {
	netCfg, err := config.GetNetworkConfig(withdrawal.Network)
	if err != nil {
		return "", err
	}

	adapter, err := s.registry.Get(withdrawal.Network)
	if err != nil {
		return "", err
	}

	retries := s.cfg.SendRetries
	if retries <= 0 {
		retries = 3
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		txHash, err := adapter.SendNative(ctx, netCfg.HotWalletAddress, withdrawal.ToAddress, withdrawal.Amount, netCfg.HotWalletSecret)
		if err == nil {
			return txHash, nil
		}
		lastErr = err
		if !apperrors.IsTransient(err) {
			break
		}
		log.Printf("⚠️ [Withdraw] Send attempt %d/%d failed for %s: %v", attempt, retries, withdrawal.ID, err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * 2 * time.Second):
		}
	}
	return "", lastErr
}

// failBeforeBurn handles a burn-transaction failure. No wrapped tokens were
// destroyed, so the debited balance is returned in full.
func (s *SettlementService) failBeforeBurn(ctx context.Context, withdrawal *models.Withdrawal, cause error) {
	if err := s.withdrawalRepo.MarkFailed(ctx, withdrawal.ID, cause.Error()); err != nil {
		log.Printf("❌ [Withdraw] Failed to mark %s failed: %v", withdrawal.ID, err)
		return
	}

	metrics.WithdrawalsFailed.WithLabelValues(withdrawal.Network).Inc()

	total := withdrawal.Amount.Add(withdrawal.Fee)
	if err := s.trading.Credit(ctx, withdrawal.UserID, withdrawal.TokenSymbol, total, withdrawal.ID); err != nil {
		if _, raiseErr := s.incidentRepo.Raise(ctx, models.IncidentLedgerMismatch, withdrawal.ID, withdrawal.Network, withdrawal.TokenSymbol, total,
			fmt.Sprintf("burn failed and re-credit failed: burn=%v credit=%v", cause, err)); raiseErr == nil {
			metrics.ConsistencyIncidents.WithLabelValues(string(models.IncidentLedgerMismatch)).Inc()
		}
	}

	events.PublishWithdrawalFailed(withdrawal.ID, withdrawal.UserID, withdrawal.Network,
		withdrawal.ToAddress, withdrawal.TokenSymbol, cause.Error(), withdrawal.Amount)

	if s.push != nil {
		failed, err := s.withdrawalRepo.GetByID(ctx, withdrawal.ID)
		if err == nil {
			s.push.BroadcastWithdrawalUpdate(failed, "failed")
		}
	}
}

// failAfterBurn handles a send failure with the burn already committed.
// The burned flag stays true and an incident carries the compensation
// decision to an operator; no automatic re-mint.
func (s *SettlementService) failAfterBurn(ctx context.Context, withdrawal *models.Withdrawal, cause error) {
	if err := s.withdrawalRepo.MarkFailed(ctx, withdrawal.ID, cause.Error()); err != nil {
		log.Printf("❌ [Withdraw] Failed to mark %s failed: %v", withdrawal.ID, err)
	}

	metrics.WithdrawalsFailed.WithLabelValues(withdrawal.Network).Inc()

	created, err := s.incidentRepo.Raise(ctx, models.IncidentBurnedUnsent, withdrawal.ID, withdrawal.Network, withdrawal.TokenSymbol, withdrawal.Amount,
		fmt.Sprintf("wrapped burned but native send failed: %v", cause))
	if err != nil {
		log.Printf("❌ [Withdraw] Failed to raise burned-unsent incident for %s: %v", withdrawal.ID, err)
	} else if created {
		metrics.ConsistencyIncidents.WithLabelValues(string(models.IncidentBurnedUnsent)).Inc()
	}

	log.Printf("🚨 Withdrawal %s failed after burn: %v", withdrawal.ID, cause)

	events.PublishWithdrawalFailed(withdrawal.ID, withdrawal.UserID, withdrawal.Network,
		withdrawal.ToAddress, withdrawal.TokenSymbol, cause.Error(), withdrawal.Amount)

	if s.push != nil {
		failed, err := s.withdrawalRepo.GetByID(ctx, withdrawal.ID)
		if err == nil {
			s.push.BroadcastWithdrawalUpdate(failed, "failed")
		}
	}
}
