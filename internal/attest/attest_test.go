package attest

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantline/grantline/internal/ethcrypto"
	granterr "github.com/grantline/grantline/pkg/errors"
)

// Private key 0x...01 corresponds to this well-known address.
var (
	testKey  = append(make([]byte, 31), 0x01)
	testAddr = common.HexToAddress("0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf")
)

func testBundle() *Bundle {
	return &Bundle{
		Principal: testAddr,
		SessionID: 7,
		Params: InlineParams{
			ValidAfter: 100,
			ValidUntil: 200,
			Amount:     "1000",
			Receiver:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
			Asset:      common.HexToAddress("0x2222222222222222222222222222222222222222"),
		},
		Payload: []byte{0xb6, 0x1d, 0x27, 0xf6, 0x01, 0x02},
	}
}

func TestBundleSignAndVerify(t *testing.T) {
	t.Parallel()

	b := testBundle()
	require.NoError(t, b.Sign(testKey))
	require.Len(t, b.Signature, ethcrypto.SignatureLength)

	require.NoError(t, b.Verify())

	signer, err := b.RecoverSigner()
	require.NoError(t, err)
	assert.Equal(t, testAddr, signer)
}

func TestBundleVerifyWrongPrincipal(t *testing.T) {
	t.Parallel()

	b := testBundle()
	require.NoError(t, b.Sign(testKey))

	b.Principal = common.HexToAddress("0x3333333333333333333333333333333333333333")

	err := b.Verify()
	require.Error(t, err)
	assert.True(t, granterr.Is(err, granterr.ErrInvalidAttestation))
}

func TestBundleDigestBindsFields(t *testing.T) {
	t.Parallel()

	base := testBundle()

	tests := []struct {
		name   string
		mutate func(b *Bundle)
	}{
		{
			name:   "session id",
			mutate: func(b *Bundle) { b.SessionID++ },
		},
		{
			name:   "payload",
			mutate: func(b *Bundle) { b.Payload = append(b.Payload, 0xff) },
		},
		{
			name:   "recurring flag",
			mutate: func(b *Bundle) { b.Params.Recurring = true },
		},
		{
			name:   "amount",
			mutate: func(b *Bundle) { b.Params.Amount = "1001" },
		},
		{
			name:   "receiver",
			mutate: func(b *Bundle) { b.Params.Receiver[0] ^= 0x01 },
		},
		{
			name:   "window",
			mutate: func(b *Bundle) { b.Params.ValidUntil++ },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := testBundle()
			tt.mutate(b)
			assert.NotEqual(t, base.Digest(), b.Digest())
		})
	}
}

func TestBundleDigestSignatureIndependent(t *testing.T) {
	t.Parallel()

	b := testBundle()
	before := b.Digest()
	require.NoError(t, b.Sign(testKey))
	assert.Equal(t, before, b.Digest())
}

func TestBundleRecoverSignerBadLength(t *testing.T) {
	t.Parallel()

	b := testBundle()
	b.Signature = []byte{0x01, 0x02}

	_, err := b.RecoverSigner()
	require.Error(t, err)
	assert.True(t, granterr.Is(err, granterr.ErrInvalidAttestation))
}

func TestBundleJSONRoundTrip(t *testing.T) {
	t.Parallel()

	b := testBundle()
	require.NoError(t, b.Sign(testKey))

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"payload":"0x`)

	var got Bundle
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, b.Principal, got.Principal)
	assert.Equal(t, b.SessionID, got.SessionID)
	assert.Equal(t, b.Params, got.Params)
	assert.Equal(t, b.Payload, got.Payload)
	assert.Equal(t, b.Signature, got.Signature)
	require.NoError(t, got.Verify())
}

func TestInlineParamsAmountBig(t *testing.T) {
	t.Parallel()

	p := InlineParams{Amount: "1000"}
	require.NotNil(t, p.AmountBig())
	assert.Equal(t, int64(1000), p.AmountBig().Int64())

	assert.Nil(t, InlineParams{Amount: "bogus"}.AmountBig())
	assert.Nil(t, InlineParams{Amount: "-1"}.AmountBig())
	assert.Nil(t, InlineParams{}.AmountBig())
}
