package services

import (
	"context"
	"testing"

	"bridge-backend/internal/chains"
	"bridge-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeAllPersistsStatus(t *testing.T) {
	installTestConfig(t)
	db := setupTestDB(t)
	ctx := context.Background()

	adapter := newFakeAdapter("testnet")
	adapter.setHeight(12345)
	statusRepo := repository.NewNetworkStatusRepository(db)

	svc := NewNetworkMonitorService(db, statusRepo,
		chains.NewRegistryFromAdapters(map[string]chains.Adapter{"testnet": adapter}))

	svc.ProbeAll(ctx)

	statuses, err := statusRepo.List(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "testnet", statuses[0].Network)
	assert.True(t, statuses[0].Online)
	assert.Equal(t, int64(12345), statuses[0].BlockHeight)

	// Re-probe upserts the same row, no duplicates.
	adapter.setHeight(12350)
	svc.ProbeAll(ctx)

	statuses, err = statusRepo.List(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, int64(12350), statuses[0].BlockHeight)
}
