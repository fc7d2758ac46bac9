package hub

import (
	"sync"

	"go.uber.org/zap"
)

type ClientInterface interface {
	ID() string
	SendBytes(b []byte) error
	Close()
}

// Hub is the registry of live subscribers. Every subscriber receives every broadcast.
type Hub struct {
	clients map[string]ClientInterface
	logger  *zap.Logger
	mu      sync.RWMutex
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]ClientInterface),
		logger:  logger,
	}
}

func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	h.clients[client.ID()] = client
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("Subscriber connected", zap.String("client_id", client.ID()), zap.Int("subscribers", n))
}

// Unregister removes client by identity and closes it. A different client that happens
// to share the ID is left alone. Safe to call more than once.
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	current, ok := h.clients[client.ID()]
	removed := ok && current == client
	if removed {
		delete(h.clients, client.ID())
	}
	n := len(h.clients)
	h.mu.Unlock()

	client.Close()
	if removed {
		h.logger.Info("Subscriber disconnected", zap.String("client_id", client.ID()), zap.Int("subscribers", n))
	}
}

// Broadcast sends payload to every registered client and returns how many accepted it.
// Clients that fail to accept are unregistered.
func (h *Hub) Broadcast(payload []byte) int {
	h.mu.RLock()
	targets := make([]ClientInterface, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if err := c.SendBytes(payload); err != nil {
			h.logger.Warn("Dropping subscriber after failed send", zap.String("client_id", c.ID()), zap.Error(err))
			h.Unregister(c)
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
