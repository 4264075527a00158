package service

import (
	"crypto/ecdsa"
	"strings"
	"testing"
	"time"

	"race_arcade/internal/domain"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedLogin(t *testing.T, key *ecdsa.PrivateKey, wallet string, issuedAt int64) domain.WalletLoginRequest {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(domain.WalletLoginMessage(wallet, issuedAt))), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return domain.WalletLoginRequest{WalletAddress: wallet, IssuedAt: issuedAt, Signature: hexutil.Encode(sig)}
}

func newLowerKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
}

func TestVerifyWalletProof_AcceptsOwnSignature(t *testing.T) {
	key, wallet := newLowerKey(t)
	now := time.Unix(1_700_000_000, 0)

	got, err := VerifyWalletProof(signedLogin(t, key, wallet, now.Unix()), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, wallet, got)

	// Checksummed input signs and verifies against the same lowercase message.
	req := signedLogin(t, key, wallet, now.Unix())
	req.WalletAddress = crypto.PubkeyToAddress(key.PublicKey).Hex()
	got, err = VerifyWalletProof(req, now)
	require.NoError(t, err)
	assert.Equal(t, wallet, got)
}

func TestVerifyWalletProof_Rejections(t *testing.T) {
	key, wallet := newLowerKey(t)
	_, other := newLowerKey(t)
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name string
		req  domain.WalletLoginRequest
		at   time.Time
	}{
		{"expired", signedLogin(t, key, wallet, now.Unix()), now.Add(WalletProofTTL + time.Second)},
		{"future", signedLogin(t, key, wallet, now.Add(10*time.Minute).Unix()), now},
		{"claims another wallet", signedLogin(t, key, other, now.Unix()), now},
		{"different time signed", func() domain.WalletLoginRequest {
			r := signedLogin(t, key, wallet, now.Unix())
			r.IssuedAt++
			return r
		}(), now},
		{"malformed", domain.WalletLoginRequest{WalletAddress: wallet, IssuedAt: now.Unix(), Signature: "0x1234"}, now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyWalletProof(tt.req, tt.at)
			assert.ErrorIs(t, err, ErrBadWalletProof)
		})
	}
}

func TestVerifyWalletProof_InvalidAddress(t *testing.T) {
	_, err := VerifyWalletProof(domain.WalletLoginRequest{WalletAddress: "nope", IssuedAt: 1, Signature: "0x"}, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestIssueWalletToken_IsPlayerScoped(t *testing.T) {
	InitJWT("test-secret")
	_, wallet := newLowerKey(t)
	now := time.Now()

	token, expires, err := IssueWalletToken(wallet, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(WalletSessionTTL), expires)

	claims, err := ParseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, wallet, claims.Subject)
	assert.Equal(t, RolePlayer, claims.Role)
}
