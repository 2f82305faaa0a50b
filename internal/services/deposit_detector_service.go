package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"bridge-backend/internal/apperrors"
	"bridge-backend/internal/chains"
	"bridge-backend/internal/config"
	"bridge-backend/internal/events"
	"bridge-backend/internal/metrics"
	"bridge-backend/internal/models"
	"bridge-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// syntheticPrefix marks tx hashes synthesized from balance deltas. The
// observation height is baked into the hash so the same delta seen twice in
// one block dedups on the unique index.
const syntheticPrefix = "bal:"

// DepositSettler is invoked exactly once per confirmed deposit.
// Implemented by SettlementService.
type DepositSettler interface {
	OnDepositConfirmed(ctx context.Context, depositID string) error
}

// monitoredAddress is one polled (network, address) pair
type monitoredAddress struct {
	network     string
	address     string
	userID      string
	lastBalance decimal.Decimal
	hasBaseline bool
	failures    int
	cancel      context.CancelFunc
}

// DepositDetectorService polls deposit addresses for incoming transfers and
// walks detected deposits to finality. Detection is balance-delta based:
// an increase since the previous poll becomes a synthesized deposit for the
// delta amount. Individual transfers landing between two polls collapse
// into one deposit; amounts stay correct, attribution granularity is lost.
type DepositDetectorService struct {
	depositRepo  repository.DepositRepository
	addressRepo  repository.DepositAddressRepository
	incidentRepo repository.IncidentRepository
	registry     *chains.Registry
	settler      DepositSettler
	cfg          *config.DetectorConfig

	mu        sync.Mutex
	monitored map[string]*monitoredAddress // key network:address
	// observation heights for pending synthetic deposits, depositID -> height
	detectionHeights map[string]int64

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewDepositDetectorService creates a new DepositDetectorService
func NewDepositDetectorService(
	depositRepo repository.DepositRepository,
	addressRepo repository.DepositAddressRepository,
	incidentRepo repository.IncidentRepository,
	registry *chains.Registry,
	settler DepositSettler,
	cfg *config.DetectorConfig,
) *DepositDetectorService {
	return &DepositDetectorService{
		depositRepo:      depositRepo,
		addressRepo:      addressRepo,
		incidentRepo:     incidentRepo,
		registry:         registry,
		settler:          settler,
		cfg:              cfg,
		monitored:        make(map[string]*monitoredAddress),
		detectionHeights: make(map[string]int64),
		stopCh:           make(chan struct{}),
	}
}

// Start reloads monitoring state from the store and begins polling.
// Active addresses resume monitoring, pending deposits resume confirmation
// tracking. Synthetic deposits lose their observation height across a
// restart and re-anchor at the current height, which restarts their wait.
func (s *DepositDetectorService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	addrs, err := s.addressRepo.ListAllActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload active addresses: %w", err)
	}
	for _, a := range addrs {
		s.WatchAddress(a.Network, a.Address, a.UserID)
	}

	pending, err := s.depositRepo.FindPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload pending deposits: %w", err)
	}
	log.Printf("🚀 DepositDetector started: %d addresses, %d pending deposits", len(addrs), len(pending))

	s.wg.Add(1)
	go s.confirmationLoop()

	return nil
}

// Stop halts every poller and the confirmation loop
func (s *DepositDetectorService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	for _, m := range s.monitored {
		m.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	log.Printf("🛑 DepositDetector stopped")
}

// WatchAddress registers an address for balance polling. Idempotent.
func (s *DepositDetectorService) WatchAddress(network, address, userID string) {
	key := network + ":" + address

	s.mu.Lock()
	if _, exists := s.monitored[key]; exists {
		s.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &monitoredAddress{
		network: network,
		address: address,
		userID:  userID,
		cancel:  cancel,
	}
	s.monitored[key] = m
	count := 0
	for _, e := range s.monitored {
		if e.network == network {
			count++
		}
	}
	s.mu.Unlock()

	metrics.MonitoredAddresses.WithLabelValues(network).Set(float64(count))

	s.wg.Add(1)
	go s.pollLoop(ctx, m)
}

// pollLoop polls one address until cancelled. Transient errors back the
// poller off exponentially, capped at 8 base intervals.
func (s *DepositDetectorService) pollLoop(ctx context.Context, m *monitoredAddress) {
	defer s.wg.Done()

	netCfg, err := config.GetNetworkConfig(m.network)
	if err != nil {
		log.Printf("❌ [Detector] No config for network %s, not polling %s", m.network, m.address)
		return
	}

	interval := netCfg.PollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	skip := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if skip > 0 {
				skip--
				continue
			}
			if err := s.pollAddress(ctx, m, netCfg); err != nil {
				kind := apperrors.Classify(err)
				metrics.DetectionErrors.WithLabelValues(m.network, kind.String()).Inc()
				if apperrors.IsTransient(err) {
					m.failures++
					backoff := 1 << m.failures
					if backoff > 8 {
						backoff = 8
					}
					skip = backoff - 1
					log.Printf("⚠️ [Detector] %s poll failed (%d in a row, backing off %dx): %v", m.address, m.failures, backoff, err)
				} else {
					log.Printf("❌ [Detector] %s poll failed permanently this cycle: %v", m.address, err)
				}
			} else {
				m.failures = 0
			}
		}
	}
}

// pollAddress reads the current balance and records any increase as a
// deposit. The first successful poll only sets the baseline.
func (s *DepositDetectorService) pollAddress(ctx context.Context, m *monitoredAddress, netCfg *config.NetworkConfig) error {
	adapter, err := s.registry.Get(m.network)
	if err != nil {
		return err
	}

	balance, err := adapter.GetBalance(ctx, m.address)
	if err != nil {
		return err
	}

	if !m.hasBaseline {
		m.lastBalance = balance
		m.hasBaseline = true
		return nil
	}

	delta := balance.Sub(m.lastBalance)
	if delta.IsPositive() {
		if err := s.recordDeposit(ctx, m, netCfg, adapter, delta); err != nil {
			return err
		}
	}
	// Withdrawals from the custodial address lower the balance; track it
	// either way so the next increase is measured from reality.
	m.lastBalance = balance
	return nil
}

// recordDeposit persists a synthesized deposit for a balance increase
func (s *DepositDetectorService) recordDeposit(ctx context.Context, m *monitoredAddress, netCfg *config.NetworkConfig, adapter chains.Adapter, delta decimal.Decimal) error {
	// Same-amount deposits within the dedup window are indistinguishable
	// from a re-observation of the previous delta.
	recent, err := s.depositRepo.HasRecentDeposit(ctx, m.network, m.address, delta, s.cfg.DedupWindow())
	if err != nil {
		return err
	}
	if recent {
		log.Printf("⏭️ [Detector] Skipping duplicate delta %s on %s (%s)", delta, m.address, m.network)
		return nil
	}

	height, err := adapter.BlockHeight(ctx)
	if err != nil {
		return err
	}

	deposit := &models.Deposit{
		ID:                    uuid.New().String(),
		UserID:                m.userID,
		Network:               m.network,
		ToAddress:             m.address,
		TxHash:                fmt.Sprintf("%s%s:%s:%d", syntheticPrefix, m.network, m.address, height),
		TokenSymbol:           netCfg.Symbol,
		Amount:                delta,
		Confirmations:         0,
		RequiredConfirmations: netCfg.RequiredConfirmations,
		Status:                models.DepositStatusPending,
		CreatedAt:             time.Now(),
	}

	if err := s.depositRepo.Create(ctx, deposit); err != nil {
		// Unique tx_hash: the same height observation already landed.
		if strings.Contains(strings.ToLower(err.Error()), "unique") || strings.Contains(strings.ToLower(err.Error()), "duplicate") {
			return nil
		}
		return err
	}

	s.mu.Lock()
	s.detectionHeights[deposit.ID] = height
	s.mu.Unlock()

	metrics.DepositsDetected.WithLabelValues(m.network).Inc()
	log.Printf("💰 [Detector] Deposit detected: user=%s network=%s amount=%s %s", m.userID, m.network, delta, netCfg.Symbol)

	events.PublishDepositDetected(deposit.ID, m.userID, m.network, deposit.TxHash, netCfg.Symbol, delta)
	return nil
}

// confirmationLoop walks all pending deposits each cycle
func (s *DepositDetectorService) confirmationLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.ConfirmInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.trackConfirmations(context.Background())
			s.flagStaleDeposits(context.Background())
		}
	}
}

// trackConfirmations advances confirmation counts and fires the settlement
// callback for deposits crossing their threshold. A poll error on one
// deposit means no update for it this cycle; the others proceed.
func (s *DepositDetectorService) trackConfirmations(ctx context.Context) {
	pending, err := s.depositRepo.FindPending(ctx)
	if err != nil {
		log.Printf("❌ [Detector] Failed to load pending deposits: %v", err)
		return
	}

	for _, dep := range pending {
		confs, err := s.depositConfirmations(ctx, dep)
		if err != nil {
			if !apperrors.IsTransient(err) {
				log.Printf("❌ [Detector] Confirmation check failed for %s: %v", dep.ID, err)
			}
			continue
		}

		if confs > dep.Confirmations {
			if err := s.depositRepo.UpdateConfirmations(ctx, dep.ID, confs); err != nil {
				log.Printf("❌ [Detector] Failed to update confirmations for %s: %v", dep.ID, err)
				continue
			}
		}

		if confs >= dep.RequiredConfirmations {
			won, err := s.depositRepo.MarkConfirmed(ctx, dep.ID)
			if err != nil {
				log.Printf("❌ [Detector] Failed to confirm deposit %s: %v", dep.ID, err)
				continue
			}
			if !won {
				continue
			}

			metrics.DepositsConfirmed.WithLabelValues(dep.Network).Inc()
			log.Printf("✅ [Detector] Deposit confirmed: %s (%s %s on %s)", dep.ID, dep.Amount, dep.TokenSymbol, dep.Network)

			s.mu.Lock()
			delete(s.detectionHeights, dep.ID)
			s.mu.Unlock()

			if err := s.settler.OnDepositConfirmed(ctx, dep.ID); err != nil {
				// Settlement retries via reconciliation; the confirm
				// already won, never roll it back.
				log.Printf("❌ [Detector] Settlement failed for deposit %s: %v", dep.ID, err)
			}
		}
	}
}

// depositConfirmations resolves the current confirmation count. Synthetic
// deposits count block progress since observation; recorded transactions
// ask the chain directly.
func (s *DepositDetectorService) depositConfirmations(ctx context.Context, dep *models.Deposit) (int64, error) {
	adapter, err := s.registry.Get(dep.Network)
	if err != nil {
		return 0, err
	}

	if strings.HasPrefix(dep.TxHash, syntheticPrefix) {
		height, err := adapter.BlockHeight(ctx)
		if err != nil {
			return 0, err
		}

		s.mu.Lock()
		anchor, ok := s.detectionHeights[dep.ID]
		if !ok {
			// Restart lost the anchor; re-anchor at the current height.
			s.detectionHeights[dep.ID] = height
			anchor = height
		}
		s.mu.Unlock()

		confs := height - anchor
		if confs < 0 {
			confs = 0
		}
		return confs, nil
	}

	tx, err := adapter.GetTransaction(ctx, dep.TxHash)
	if err != nil {
		return 0, err
	}
	if tx.Pending {
		// Not mined yet; no update this cycle.
		return dep.Confirmations, nil
	}
	if !tx.Success {
		// Mined and reverted. Only this shape is terminal.
		if markErr := s.depositRepo.MarkFailed(ctx, dep.ID); markErr != nil {
			return 0, markErr
		}
		return 0, apperrors.Permanentf("detector.confirm", "transaction %s failed on chain", dep.TxHash)
	}
	return tx.Confirmations, nil
}

// flagStaleDeposits raises a manual-review incident for deposits pending
// past the review window. Flagged once; polling continues.
func (s *DepositDetectorService) flagStaleDeposits(ctx context.Context) {
	pending, err := s.depositRepo.FindPending(ctx)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-s.cfg.ReviewAfter())
	for _, dep := range pending {
		if dep.FlaggedAt != nil || dep.CreatedAt.After(cutoff) {
			continue
		}

		flagged, err := s.depositRepo.MarkFlagged(ctx, dep.ID)
		if err != nil || !flagged {
			continue
		}

		created, err := s.incidentRepo.Raise(ctx, models.IncidentStaleDeposit, dep.ID, dep.Network, dep.TokenSymbol, dep.Amount,
			fmt.Sprintf("deposit pending since %s (%d/%d confirmations)", dep.CreatedAt.Format(time.RFC3339), dep.Confirmations, dep.RequiredConfirmations))
		if err != nil {
			log.Printf("❌ [Detector] Failed to raise stale-deposit incident for %s: %v", dep.ID, err)
			continue
		}
		if created {
			metrics.ConsistencyIncidents.WithLabelValues(string(models.IncidentStaleDeposit)).Inc()
			log.Printf("🚩 [Detector] Deposit %s pending for over %v, flagged for review", dep.ID, s.cfg.ReviewAfter())
		}
	}
}
