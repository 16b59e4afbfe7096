package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sdrelite/marketbot/internal/core/domain"
	"github.com/sdrelite/marketbot/internal/core/service"
)

const defaultListLimit = 50

// OpsHandler is the back-office surface: wallet top-ups and product
// queries. Chat users never touch it; it is bearer-token only.
type OpsHandler struct {
	svc       *service.LifecycleService
	jwtSecret []byte
	log       *zap.Logger
}

func NewOpsHandler(svc *service.LifecycleService, jwtSecret []byte, log *zap.Logger) *OpsHandler {
	return &OpsHandler{svc: svc, jwtSecret: jwtSecret, log: log}
}

func (h *OpsHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(h.auth)
	api.HandleFunc("/wallets/{id}/credit", h.CreditWallet).Methods(http.MethodPost)
	api.HandleFunc("/wallets/{id}", h.GetWallet).Methods(http.MethodGet)
	api.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet)
	return r
}

func (h *OpsHandler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "bearer token required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return h.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

type creditRequest struct {
	Amount string `json:"amount"`
}

type walletResponse struct {
	UserID  string `json:"user_id"`
	Balance string `json:"balance"`
}

type productResponse struct {
	ID         string `json:"id"`
	OwnerID    string `json:"owner_id"`
	Name       string `json:"name"`
	Price      string `json:"price"`
	ListingFee string `json:"listing_fee"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

func (h *OpsHandler) CreditWallet(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "amount must be a decimal string")
		return
	}

	balance, err := h.svc.Credit(r.Context(), userID, amount)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "amount must be positive")
			return
		}
		h.log.Error("credit wallet failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "credit failed")
		return
	}

	writeJSON(w, http.StatusOK, walletResponse{UserID: userID, Balance: balance.String()})
}

func (h *OpsHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	balance, err := h.svc.Balance(r.Context(), userID)
	if err != nil {
		h.log.Error("get wallet failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "balance lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, walletResponse{UserID: userID, Balance: balance.String()})
}

func (h *OpsHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	statusParam := r.URL.Query().Get("status")
	if statusParam == "" {
		statusParam = string(domain.StatusPendingApproval)
	}
	status, err := domain.ParseStatus(statusParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "limit must be a positive integer")
			return
		}
	}

	products, err := h.svc.ListProducts(r.Context(), status, limit)
	if err != nil {
		h.log.Error("list products failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "product query failed")
		return
	}

	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, productResponse{
			ID:         p.ID,
			OwnerID:    p.OwnerID,
			Name:       p.Name,
			Price:      p.Price.String(),
			ListingFee: p.ListingFee.String(),
			Status:     string(p.Status),
			CreatedAt:  p.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
