package chains

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	name string
}

func (s *stubAdapter) Network() string { return s.name }
func (s *stubAdapter) GenerateAddress(ctx context.Context, userID string) (*GeneratedAddress, error) {
	return &GeneratedAddress{Address: "addr", Secret: "secret"}, nil
}
func (s *stubAdapter) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (s *stubAdapter) GetTransaction(ctx context.Context, txHash string) (*TxInfo, error) {
	return nil, nil
}
func (s *stubAdapter) SendNative(ctx context.Context, from, to string, amount decimal.Decimal, secret string) (string, error) {
	return "", nil
}
func (s *stubAdapter) ValidateAddress(address string) bool { return true }
func (s *stubAdapter) BlockHeight(ctx context.Context) (int64, error) {
	return 0, nil
}

func TestRegistryGet(t *testing.T) {
	registry := NewRegistryFromAdapters(map[string]Adapter{
		"ethereum": &stubAdapter{name: "ethereum"},
		"bitcoin":  &stubAdapter{name: "bitcoin"},
	})

	adapter, err := registry.Get("ethereum")
	require.NoError(t, err)
	assert.Equal(t, "ethereum", adapter.Network())

	_, err = registry.Get("dogecoin")
	require.Error(t, err)
}

func TestRegistryNetworksSorted(t *testing.T) {
	registry := NewRegistryFromAdapters(map[string]Adapter{
		"solana":   &stubAdapter{name: "solana"},
		"bitcoin":  &stubAdapter{name: "bitcoin"},
		"ethereum": &stubAdapter{name: "ethereum"},
	})

	assert.Equal(t, []string{"bitcoin", "ethereum", "solana"}, registry.Networks())
}
