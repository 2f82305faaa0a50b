package utils

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	wei, err := ToBaseUnits(decimal.RequireFromString("1.5"), 18)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", wei.String())

	sats, err := ToBaseUnits(decimal.RequireFromString("0.00000001"), 8)
	require.NoError(t, err)
	assert.Equal(t, "1", sats.String())

	lamports, err := ToBaseUnits(decimal.Zero, 9)
	require.NoError(t, err)
	assert.Equal(t, "0", lamports.String())
}

func TestToBaseUnitsRejectsExcessPrecision(t *testing.T) {
	// 9 decimal places do not fit in 8-decimal satoshi.
	_, err := ToBaseUnits(decimal.RequireFromString("0.000000001"), 8)
	require.Error(t, err)

	_, err = ToBaseUnits(decimal.RequireFromString("-1"), 8)
	require.Error(t, err)
}

func TestFromBaseUnitsRoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("2.000000000000000001")
	raw, err := ToBaseUnits(amount, 18)
	require.NoError(t, err)
	assert.True(t, FromBaseUnits(raw, 18).Equal(amount))

	assert.True(t, FromBaseUnits(big.NewInt(150000000), 8).Equal(decimal.RequireFromString("1.5")))
}

func TestSecretRoundTrip(t *testing.T) {
	plain := []byte("ed25519-seed-material")

	sealed, err := EncryptSecret(plain, "passphrase")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "ed25519")

	opened, err := DecryptSecret(sealed, "passphrase")
	require.NoError(t, err)
	assert.Equal(t, plain, opened)
}

func TestSecretWrongPassphrase(t *testing.T) {
	sealed, err := EncryptSecret([]byte("material"), "right")
	require.NoError(t, err)

	_, err = DecryptSecret(sealed, "wrong")
	require.Error(t, err)
}

func TestSecretRandomNonce(t *testing.T) {
	a, err := EncryptSecret([]byte("same"), "pass")
	require.NoError(t, err)
	b, err := EncryptSecret([]byte("same"), "pass")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "ciphertexts must not repeat for the same input")
}

func TestDecryptSecretRejectsGarbage(t *testing.T) {
	_, err := DecryptSecret("not-base64!!!", "pass")
	require.Error(t, err)

	_, err = DecryptSecret("c2hvcnQ=", "pass")
	require.Error(t, err)
}
