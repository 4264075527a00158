package ws

import (
	"encoding/json"
	"sync"

	"race_arcade/internal/domain"
	"race_arcade/internal/logger"
)

// Hub fans ledger updates out to every connection watching a wallet.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.Wallet]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.Wallet] = set
	}
	set[c] = struct{}{}
	logger.Debug("ws client registered", "wallet", c.Wallet, "connections", len(set))
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.Wallet]
	if !ok {
		return
	}
	if _, ok := set[c]; ok {
		delete(set, c)
		close(c.Send)
	}
	if len(set) == 0 {
		delete(h.clients, c.Wallet)
	}
}

// Connections returns the number of live connections for wallet.
func (h *Hub) Connections(wallet string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[wallet])
}

// PublishBalance sends the user's current balance to the wallet's subscribers.
// Slow clients drop the message rather than block the ledger.
func (h *Hub) PublishBalance(wallet string, user *domain.User) {
	msg, err := json.Marshal(Envelope{
		Type: MsgBalance,
		Payload: BalancePayload{
			Wallet:           wallet,
			Credits:          user.Credits,
			TotalGamesPlayed: user.TotalGamesPlayed,
		},
	})
	if err != nil {
		logger.Error("failed to encode balance message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[wallet] {
		select {
		case c.Send <- msg:
		default:
			logger.Warn("ws send buffer full, dropping balance update", "wallet", wallet)
		}
	}
}
