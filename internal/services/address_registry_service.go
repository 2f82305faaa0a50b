package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bridge-backend/internal/chains"
	"bridge-backend/internal/models"
	"bridge-backend/internal/repository"
	"bridge-backend/internal/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AddressMonitor receives newly issued deposit addresses for polling.
// Implemented by DepositDetectorService.
type AddressMonitor interface {
	WatchAddress(network, address, userID string)
}

// AddressRegistryService issues and looks up per-user deposit addresses.
// One active address per (user, network); repeat calls return the same row.
type AddressRegistryService struct {
	addressRepo repository.DepositAddressRepository
	registry    *chains.Registry
	passphrase  string
	monitor     AddressMonitor
}

// NewAddressRegistryService creates a new AddressRegistryService
func NewAddressRegistryService(addressRepo repository.DepositAddressRepository, registry *chains.Registry, passphrase string) *AddressRegistryService {
	return &AddressRegistryService{
		addressRepo: addressRepo,
		registry:    registry,
		passphrase:  passphrase,
	}
}

// SetMonitor wires the detector in after construction. The detector needs
// the registry for its startup reload, so the two cannot be built in one
// direction.
func (s *AddressRegistryService) SetMonitor(monitor AddressMonitor) {
	s.monitor = monitor
}

// GetOrCreateAddress returns the user's active deposit address on the
// network, generating one on first call. A concurrent first call loses the
// unique-index race and reads back the winner's row, so both callers see
// the same address.
func (s *AddressRegistryService) GetOrCreateAddress(ctx context.Context, userID, network string) (*models.DepositAddress, error) {
	existing, err := s.addressRepo.GetActive(ctx, userID, network)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	adapter, err := s.registry.Get(network)
	if err != nil {
		return nil, err
	}

	generated, err := adapter.GenerateAddress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s address: %w", network, err)
	}

	encrypted, err := utils.EncryptSecret([]byte(generated.Secret), s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt address secret: %w", err)
	}

	addr := &models.DepositAddress{
		ID:              uuid.New().String(),
		UserID:          userID,
		Network:         network,
		Address:         generated.Address,
		EncryptedSecret: encrypted,
		IsActive:        models.BoolPtr(true),
		CreatedAt:       time.Now(),
	}

	if err := s.addressRepo.Create(ctx, addr); err != nil {
		// Unique index on (user_id, network, is_active): a concurrent
		// creator won, use its row.
		winner, readErr := s.addressRepo.GetActive(ctx, userID, network)
		if readErr == nil {
			log.Printf("⚠️ Lost address create race for user=%s network=%s, using existing %s", userID, network, winner.Address)
			return winner, nil
		}
		return nil, err
	}

	log.Printf("✅ Issued deposit address user=%s network=%s address=%s", userID, network, addr.Address)

	if s.monitor != nil {
		s.monitor.WatchAddress(network, addr.Address, userID)
	}
	return addr, nil
}

// ListAddresses returns the user's active deposit addresses keyed by network
func (s *AddressRegistryService) ListAddresses(ctx context.Context, userID string) (map[string]string, error) {
	addrs, err := s.addressRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(addrs))
	for _, a := range addrs {
		out[a.Network] = a.Address
	}
	return out, nil
}

// DecryptSecret recovers the signing secret for a deposit address. Used by
// the withdrawal sender for networks that fund sends from deposit keys.
func (s *AddressRegistryService) DecryptSecret(addr *models.DepositAddress) (string, error) {
	plain, err := utils.DecryptSecret(addr.EncryptedSecret, s.passphrase)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret for %s: %w", addr.Address, err)
	}
	return string(plain), nil
}
