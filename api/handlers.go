/*
handlers.go - HTTP API handlers for the billing engine

PURPOSE:
  Exposes the balance history engine and billing workflow via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Users:
    GET    /api/users                       List all users
    POST   /api/users                       Create user
    GET    /api/users/{id}                  Get user details
    GET    /api/users/{id}/balance          Live balance
    GET    /api/users/{id}/balance/history  Chart series (configured source)
    GET    /api/users/{id}/balance/overview Chart series (ledger replay)
    GET    /api/users/{id}/transactions     Ledger history

  Wallet:
    POST   /api/users/{id}/deposits         Record a deposit
    POST   /api/users/{id}/withdrawals      Record a withdrawal

  Documents:
    POST   /api/documents                   Create invoice or bill
    GET    /api/documents                   List by user, optional kind filter
    GET    /api/documents/{id}              Get document
    POST   /api/documents/{id}/send         Invoice: draft -> sent
    POST   /api/documents/{id}/schedule     Bill: received -> scheduled
    POST   /api/documents/{id}/pay          Bill: settle via wallet
    POST   /api/documents/{id}/mark-paid    Invoice: record incoming payment

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unknown scale
  - 404: Resource not found
  - 409: Insufficient funds, invalid status transition
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ledgerline/billing-engine/billing"
	"github.com/ledgerline/billing-engine/history"
	"github.com/ledgerline/billing-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Wallet    *billing.Wallet
	Documents *billing.DocumentService

	// History serves /balance/history; which backend it is (snapshot
	// reconstruction or ledger replay) is a deployment decision.
	History history.Source

	// Replay always serves /balance/overview from the ledger.
	Replay *history.Replayer

	Logger *zap.Logger
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(store *sqlite.Store, wallet *billing.Wallet, documents *billing.DocumentService, source history.Source, replay *history.Replayer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:     store,
		Wallet:    wallet,
		Documents: documents,
		History:   source,
		Replay:    replay,
		Logger:    logger,
	}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUsers returns all users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUser returns a single user.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := history.UserID(chi.URLParam(r, "id"))

	u, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get user", err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

// CreateUser creates a new user.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	u := billing.User{
		ID:        history.UserID(req.ID),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.SaveUser(r.Context(), u); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetBalance returns the user's live balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := history.UserID(chi.URLParam(r, "id"))

	amount, err := h.Store.CurrentBalance(r.Context(), id)
	if errors.Is(err, history.ErrNoBalance) {
		// No recorded balance yet: report zero rather than erroring,
		// matching the chart's empty-state behavior.
		writeJSON(w, http.StatusOK, map[string]any{"balance": 0.0, "currency": ""})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get balance", err)
		return
	}

	balance, _ := amount.Value.Float64()
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance, "currency": amount.Currency})
}

// GetBalanceHistory returns the chart series from the configured source.
// GET /api/users/{id}/balance/history?scale=day|week|month|quarter
func (h *Handler) GetBalanceHistory(w http.ResponseWriter, r *http.Request) {
	h.serveSeries(w, r, h.History)
}

// GetBalanceOverview returns the chart series replayed from the ledger.
// GET /api/users/{id}/balance/overview?scale=day|week|month|quarter
func (h *Handler) GetBalanceOverview(w http.ResponseWriter, r *http.Request) {
	h.serveSeries(w, r, h.Replay)
}

func (h *Handler) serveSeries(w http.ResponseWriter, r *http.Request, source history.Source) {
	id := history.UserID(chi.URLParam(r, "id"))

	scaleParam := r.URL.Query().Get("scale")
	if scaleParam == "" {
		scaleParam = string(history.ScaleDay)
	}
	scale, err := history.ParseScale(scaleParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown scale", err)
		return
	}

	points, err := source.History(r.Context(), id, scale)
	if err != nil {
		h.Logger.Error("balance history failed",
			zap.String("user_id", string(id)),
			zap.String("scale", string(scale)),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to build balance history", err)
		return
	}

	writeJSON(w, http.StatusOK, toSeriesDTO(id, scale, points))
}

// GetTransactions returns the user's ledger history, oldest first.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id := history.UserID(chi.URLParam(r, "id"))

	txs, err := h.Store.InRange(r.Context(), id, time.Time{}, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// WALLET HANDLERS
// =============================================================================

// Deposit records a deposit for the user.
// POST /api/users/{id}/deposits
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Wallet.Deposit)
}

// Withdraw records a withdrawal for the user.
// POST /api/users/{id}/withdrawals
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Wallet.Withdraw)
}

type mutationFunc func(ctx context.Context, userID history.UserID, amount history.Amount, description string) (history.Transaction, history.Amount, error)

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn mutationFunc) {
	id := history.UserID(chi.URLParam(r, "id"))

	var req MutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tx, newBalance, err := fn(r.Context(), id, history.NewAmount(req.Amount, req.Currency), req.Description)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	balance, _ := newBalance.Value.Float64()
	writeJSON(w, http.StatusCreated, map[string]any{
		"transaction": toTransactionDTO(tx),
		"balance":     balance,
		"currency":    newBalance.Currency,
	})
}

// =============================================================================
// DOCUMENT HANDLERS
// =============================================================================

// CreateDocument creates an invoice or bill.
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || req.Counterparty == "" {
		writeError(w, http.StatusBadRequest, "user_id and counterparty are required", nil)
		return
	}

	kind := billing.DocumentKind(req.Kind)
	if kind != billing.KindInvoice && kind != billing.KindBill {
		writeError(w, http.StatusBadRequest, "kind must be invoice or bill", nil)
		return
	}

	doc := billing.Document{
		UserID:       history.UserID(req.UserID),
		Kind:         kind,
		Counterparty: req.Counterparty,
		Amount:       history.NewAmount(req.Amount, req.Currency),
	}
	if req.DueDate != "" {
		due, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid due_date, expected YYYY-MM-DD", err)
			return
		}
		doc.DueDate = &due
	}

	created, err := h.Documents.Create(r.Context(), doc)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDocumentDTO(created))
}

// ListDocuments returns a user's documents.
// GET /api/documents?user_id=...&kind=invoice|bill
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	userID := history.UserID(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	kind := billing.DocumentKind(r.URL.Query().Get("kind"))

	docs, err := h.Documents.List(r.Context(), userID, kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list documents", err)
		return
	}

	dtos := make([]DocumentDTO, len(docs))
	for i, doc := range docs {
		dtos[i] = toDocumentDTO(doc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDocument returns a single document.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Documents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTO(doc))
}

// SendDocument marks a draft invoice as sent.
func (h *Handler) SendDocument(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Documents.Send)
}

// ScheduleDocument marks a received bill as scheduled for payment.
func (h *Handler) ScheduleDocument(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Documents.Schedule)
}

// PayDocument settles a bill through the wallet.
func (h *Handler) PayDocument(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Documents.PayBill)
}

// MarkDocumentPaid records an incoming payment against an invoice.
func (h *Handler) MarkDocumentPaid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Documents.MarkInvoicePaid)
}

type transitionFunc func(ctx context.Context, id string) (billing.Document, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	doc, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTO(doc))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, billing.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, "Insufficient funds", err)
	case errors.Is(err, billing.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "Invalid status transition", err)
	case billing.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		h.Logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
