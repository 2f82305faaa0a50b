package services

import (
	"context"
	"testing"

	"bridge-backend/internal/chains"
	"bridge-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMonitor struct {
	watched []string
}

func (r *recordingMonitor) WatchAddress(network, address, userID string) {
	r.watched = append(r.watched, network+":"+address)
}

func newRegistryFixture(t *testing.T) (*AddressRegistryService, *fakeAdapter, *recordingMonitor) {
	t.Helper()
	installTestConfig(t)

	db := setupTestDB(t)
	adapter := newFakeAdapter("testnet")
	monitor := &recordingMonitor{}

	svc := NewAddressRegistryService(
		repository.NewDepositAddressRepository(db),
		chains.NewRegistryFromAdapters(map[string]chains.Adapter{"testnet": adapter}),
		"test-passphrase",
	)
	svc.SetMonitor(monitor)
	return svc, adapter, monitor
}

func TestGetOrCreateAddressStable(t *testing.T) {
	svc, adapter, monitor := newRegistryFixture(t)
	ctx := context.Background()

	first, err := svc.GetOrCreateAddress(ctx, "user-1", "testnet")
	require.NoError(t, err)
	assert.NotEmpty(t, first.Address)
	require.Len(t, monitor.watched, 1)

	// Repeat calls return the same row without generating a new key.
	second, err := svc.GetOrCreateAddress(ctx, "user-1", "testnet")
	require.NoError(t, err)
	assert.Equal(t, first.Address, second.Address)
	assert.Equal(t, 1, adapter.genCount)
	assert.Len(t, monitor.watched, 1)

	// A different user gets a different address.
	other, err := svc.GetOrCreateAddress(ctx, "user-2", "testnet")
	require.NoError(t, err)
	assert.NotEqual(t, first.Address, other.Address)
}

func TestGetOrCreateAddressUnknownNetwork(t *testing.T) {
	svc, _, _ := newRegistryFixture(t)

	_, err := svc.GetOrCreateAddress(context.Background(), "user-1", "nope")
	require.Error(t, err)
}

func TestAddressSecretRoundTrip(t *testing.T) {
	svc, _, _ := newRegistryFixture(t)
	ctx := context.Background()

	addr, err := svc.GetOrCreateAddress(ctx, "user-1", "testnet")
	require.NoError(t, err)
	assert.NotEmpty(t, addr.EncryptedSecret)
	assert.NotContains(t, addr.EncryptedSecret, "secret-user-1", "secret must not be stored in the clear")

	plain, err := svc.DecryptSecret(addr)
	require.NoError(t, err)
	assert.Equal(t, "secret-user-1", plain)
}

func TestListAddressesByNetwork(t *testing.T) {
	svc, _, _ := newRegistryFixture(t)
	ctx := context.Background()

	created, err := svc.GetOrCreateAddress(ctx, "user-1", "testnet")
	require.NoError(t, err)

	addrs, err := svc.ListAddresses(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"testnet": created.Address}, addrs)

	empty, err := svc.ListAddresses(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
