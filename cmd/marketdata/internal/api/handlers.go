package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/gateway"
	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/hub"
)

type QuoteResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

type ValidationResponse struct {
	Symbol  string `json:"symbol"`
	IsValid bool   `json:"isValid"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

type Handler struct {
	service *Service
	hub     *hub.Hub
	logger  *zap.Logger
}

func NewHandler(service *Service, h *hub.Hub, logger *zap.Logger) *Handler {
	return &Handler{service: service, hub: h, logger: logger}
}

// NewRouter wires the HTTP and websocket endpoints.
func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Health)
	mux.HandleFunc("GET /api/market-data/validate/{symbol}", h.Validate)
	mux.HandleFunc("GET /api/market-data/quote/{symbol}", h.Quote)
	mux.HandleFunc("GET /ws/market-data/prices", h.Subscribe)
	return mux
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "Market Data Service is running"})
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	valid := h.service.Validate(r.Context(), symbol)

	h.logger.Debug("Validated symbol", zap.String("symbol", symbol), zap.Bool("valid", valid))
	writeJSON(w, http.StatusOK, ValidationResponse{Symbol: symbol, IsValid: valid})
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	price, err := h.service.Quote(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, ErrPriceNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Detail: "Price not found for symbol: " + symbol})
			return
		}
		if r.Context().Err() != nil {
			h.logger.Debug("Quote abandoned by client", zap.String("symbol", symbol))
			return
		}
		h.logger.Error("Quote failed", zap.String("symbol", symbol), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: "Internal Server Error"})
		return
	}

	writeJSON(w, http.StatusOK, QuoteResponse{Symbol: symbol, Price: price})
}

// Subscribe upgrades to a websocket and registers the connection for price broadcasts.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := gateway.NewClient(conn, h.hub, h.logger)
	client.Start()
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
