package websocket

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// BalanceUpdate is pushed to an account owner after a ledger operation
// commits.
type BalanceUpdate struct {
	AccountID string `json:"account_id"`
	IBAN      string `json:"iban"`
	Balance   string `json:"balance"`
	Reference string `json:"reference"`
	Type      string `json:"type"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// BroadcastBalance never blocks: a client whose buffer is full misses the
// update.
func (h *Hub) BroadcastBalance(userID string, update BalanceUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		h.logger.Error("marshal balance update", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("dropping balance update for slow client",
				zap.String("user_id", userID),
				zap.String("account_id", update.AccountID),
			)
		}
	}
}
