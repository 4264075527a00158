package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"race_arcade/internal/domain"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
)

// KeyWallet signs transfers with a local private key. It backs the smoke tool and
// any headless purchase client; browser wallets implement Wallet on their own.
type KeyWallet struct {
	client *ethclient.Client
	key    *ecdsa.PrivateKey
	addr   common.Address
}

func NewKeyWallet(client *ethclient.Client, hexKey string) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &KeyWallet{
		client: client,
		key:    key,
		addr:   crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (w *KeyWallet) Account(ctx context.Context) (common.Address, error) {
	return w.addr, nil
}

// SignText signs msg the way personal_sign does and returns the 0x signature with v as 27/28.
func (w *KeyWallet) SignText(msg string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), w.key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

func (w *KeyWallet) ChainID(ctx context.Context) (*big.Int, error) {
	return w.client.ChainID(ctx)
}

// SwitchChain cannot move an RPC endpoint; it only succeeds when already there.
func (w *KeyWallet) SwitchChain(ctx context.Context, chainID *big.Int) error {
	current, err := w.client.ChainID(ctx)
	if err != nil {
		return err
	}
	if current.Cmp(chainID) != 0 {
		return fmt.Errorf("%w: endpoint serves chain %s", domain.ErrWrongNetwork, current)
	}
	return nil
}

// SendTransaction signs a transfer (dynamic-fee when the chain has a base fee) and broadcasts it.
func (w *KeyWallet) SendTransaction(ctx context.Context, req TransferRequest) (common.Hash, error) {
	nonce, err := w.client.PendingNonceAt(ctx, w.addr)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	head, err := w.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("latest header: %w", err)
	}

	to := req.To
	var tx *types.Transaction
	if head.BaseFee == nil {
		gasPrice, err := w.client.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("gas price: %w", err)
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      params.TxGas,
			To:       &to,
			Value:    req.Value,
		})
	} else {
		tip, err := w.client.SuggestGasTipCap(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("gas tip: %w", err)
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   req.ChainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       params.TxGas,
			To:        &to,
			Value:     req.Value,
		})
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(req.ChainID), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := w.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

// Reconnect probes the endpoint; ethclient redials on its own.
func (w *KeyWallet) Reconnect(ctx context.Context) error {
	_, err := w.client.ChainID(ctx)
	return err
}
