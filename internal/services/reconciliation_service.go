package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"bridge-backend/internal/metrics"
	"bridge-backend/internal/models"
	"bridge-backend/internal/repository"
)

// ReconciliationService periodically sweeps for rows stuck between two
// sides of a value movement: deposits confirmed without a mint and
// withdrawals burned without a send. It raises incidents for operators and
// never auto-corrects; the correct compensation depends on facts outside
// the database.
type ReconciliationService struct {
	depositRepo    repository.DepositRepository
	withdrawalRepo repository.WithdrawalRepository
	incidentRepo   repository.IncidentRepository

	interval    time.Duration
	graceWindow time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	depositRepo repository.DepositRepository,
	withdrawalRepo repository.WithdrawalRepository,
	incidentRepo repository.IncidentRepository,
) *ReconciliationService {
	return &ReconciliationService{
		depositRepo:    depositRepo,
		withdrawalRepo: withdrawalRepo,
		incidentRepo:   incidentRepo,
		interval:       5 * time.Minute,
		graceWindow:    10 * time.Minute,
		stopCh:         make(chan struct{}),
	}
}

// Start launches the periodic sweep
func (s *ReconciliationService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	log.Printf("🚀 ReconciliationService started (interval: %v, grace: %v)", s.interval, s.graceWindow)
	go s.sweepLoop()
}

// Stop halts the sweep loop
func (s *ReconciliationService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	log.Printf("🛑 ReconciliationService stopped")
}

func (s *ReconciliationService) sweepLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep(context.Background())
		}
	}
}

// Sweep runs both scans once
func (s *ReconciliationService) Sweep(ctx context.Context) {
	s.scanUnmintedDeposits(ctx)
	s.scanBurnedUnsent(ctx)
}

// scanUnmintedDeposits flags deposits that confirmed but never minted.
// A crash between the confirm CAS and the mint transaction leaves exactly
// this shape behind.
func (s *ReconciliationService) scanUnmintedDeposits(ctx context.Context) {
	deposits, err := s.depositRepo.FindConfirmedUnminted(ctx, s.graceWindow)
	if err != nil {
		log.Printf("❌ [Reconcile] Failed to scan unminted deposits: %v", err)
		return
	}

	for _, dep := range deposits {
		created, err := s.incidentRepo.Raise(ctx, models.IncidentUnmintedFlag, dep.ID, dep.Network, dep.TokenSymbol, dep.Amount,
			fmt.Sprintf("deposit confirmed at %s but wrapped mint never recorded", formatTime(dep.ConfirmedAt)))
		if err != nil {
			log.Printf("❌ [Reconcile] Failed to raise unminted incident for %s: %v", dep.ID, err)
			continue
		}
		if created {
			metrics.ConsistencyIncidents.WithLabelValues(string(models.IncidentUnmintedFlag)).Inc()
			log.Printf("🚨 [Reconcile] Deposit %s confirmed but unminted", dep.ID)
		}
	}
}

// scanBurnedUnsent flags withdrawals whose wrapped tokens are gone but
// whose native transfer never got a tx hash.
func (s *ReconciliationService) scanBurnedUnsent(ctx context.Context) {
	withdrawals, err := s.withdrawalRepo.FindBurnedUnsent(ctx, s.graceWindow)
	if err != nil {
		log.Printf("❌ [Reconcile] Failed to scan burned-unsent withdrawals: %v", err)
		return
	}

	for _, w := range withdrawals {
		created, err := s.incidentRepo.Raise(ctx, models.IncidentBurnedUnsent, w.ID, w.Network, w.TokenSymbol, w.Amount,
			fmt.Sprintf("wrapped burned at %s but no native send recorded (status %s)", formatTime(w.BurnedAt), w.Status))
		if err != nil {
			log.Printf("❌ [Reconcile] Failed to raise burned-unsent incident for %s: %v", w.ID, err)
			continue
		}
		if created {
			metrics.ConsistencyIncidents.WithLabelValues(string(models.IncidentBurnedUnsent)).Inc()
			log.Printf("🚨 [Reconcile] Withdrawal %s burned but unsent", w.ID)
		}
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format(time.RFC3339)
}
