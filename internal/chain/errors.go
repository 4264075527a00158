package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"race_arcade/internal/domain"

	"github.com/ethereum/go-ethereum/rpc"
)

// EIP-1193 provider error codes.
const (
	codeUserRejected      = 4001
	codeDisconnected      = 4900
	codeChainDisconnected = 4901
	codeUnrecognizedChain = 4902
)

var classified = []error{
	domain.ErrUserRejected,
	domain.ErrInsufficientFunds,
	domain.ErrWalletNotConnected,
	domain.ErrNotConnected,
	domain.ErrWrongNetwork,
	domain.ErrTransientConnection,
}

// ClassifyError maps a raw wallet or provider error onto the payment taxonomy.
// The original error text is kept in the message. Unknown errors are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range classified {
		if errors.Is(err, known) {
			return err
		}
	}

	var coded rpc.Error
	if errors.As(err, &coded) {
		switch coded.ErrorCode() {
		case codeUserRejected:
			return fmt.Errorf("%w: %v", domain.ErrUserRejected, err)
		case codeDisconnected, codeChainDisconnected:
			return fmt.Errorf("%w: %v", domain.ErrWalletNotConnected, err)
		case codeUnrecognizedChain:
			return fmt.Errorf("%w: %v", domain.ErrWrongNetwork, err)
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", domain.ErrTransientConnection, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "user rejected", "user denied", "rejected the request", "request rejected"):
		return fmt.Errorf("%w: %v", domain.ErrUserRejected, err)
	case strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %v", domain.ErrInsufficientFunds, err)
	case containsAny(msg, "disconnected", "not connected", "connector not found", "no active session"):
		return fmt.Errorf("%w: %v", domain.ErrWalletNotConnected, err)
	case containsAny(msg, "connector", "provider", "timeout", "timed out", "connection reset", "connection refused", "eof", "too many requests"):
		return fmt.Errorf("%w: %v", domain.ErrTransientConnection, err)
	}
	return err
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
