package chain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PendingPayment is a submitted payment that has not been credited yet.
// Confirmed is set once the chain reports it mined successfully.
type PendingPayment struct {
	Hash        common.Hash `json:"hash"`
	Wallet      string      `json:"wallet"`
	Package     int64       `json:"package"`
	SubmittedAt time.Time   `json:"submitted_at"`
	Confirmed   bool        `json:"confirmed,omitempty"`
}

// PendingStore keeps the outstanding payment outside the watch loop so a
// paused session can resume watching it.
type PendingStore interface {
	Save(p PendingPayment) error
	// Load returns nil, nil when nothing is pending.
	Load() (*PendingPayment, error)
	Clear() error
}

// FilePendingStore persists the pending payment as a JSON file.
type FilePendingStore struct {
	mu   sync.Mutex
	path string
}

func NewFilePendingStore(path string) *FilePendingStore {
	return &FilePendingStore{path: path}
}

func (s *FilePendingStore) Save(p PendingPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write pending payment: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FilePendingStore) Load() (*PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p PendingPayment
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode pending payment: %w", err)
	}
	return &p, nil
}

func (s *FilePendingStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
