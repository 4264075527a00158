package service

import (
	"errors"
	"fmt"
	"time"

	"race_arcade/internal/domain"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// RolePlayer tokens are bound to one wallet and may spend its credits.
const RolePlayer = "player"

const (
	WalletProofTTL   = 5 * time.Minute
	WalletSessionTTL = 24 * time.Hour

	proofClockSkew = time.Minute
)

var ErrBadWalletProof = errors.New("wallet proof rejected")

// VerifyWalletProof checks that signature is the wallet's personal_sign over
// domain.WalletLoginMessage and that the message is recent. It returns the normalized wallet.
func VerifyWalletProof(req domain.WalletLoginRequest, now time.Time) (string, error) {
	wallet, err := domain.NormalizeWallet(req.WalletAddress)
	if err != nil {
		return "", err
	}

	issued := time.Unix(req.IssuedAt, 0)
	if now.Sub(issued) > WalletProofTTL {
		return "", fmt.Errorf("%w: proof expired", ErrBadWalletProof)
	}
	if issued.Sub(now) > proofClockSkew {
		return "", fmt.Errorf("%w: proof issued in the future", ErrBadWalletProof)
	}

	sig, err := hexutil.Decode(req.Signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("%w: malformed signature", ErrBadWalletProof)
	}
	// Wallets return v as 27/28; recovery wants 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	hash := accounts.TextHash([]byte(domain.WalletLoginMessage(wallet, req.IssuedAt)))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadWalletProof, err)
	}

	signer, _ := domain.NormalizeWallet(crypto.PubkeyToAddress(*pub).Hex())
	if signer != wallet {
		return "", fmt.Errorf("%w: signed by %s", ErrBadWalletProof, signer)
	}
	return wallet, nil
}

// IssueWalletToken returns a player token for wallet and its expiry.
func IssueWalletToken(wallet string, now time.Time) (string, time.Time, error) {
	token, err := GenerateJWT(wallet, RolePlayer, WalletSessionTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, now.Add(WalletSessionTTL), nil
}
