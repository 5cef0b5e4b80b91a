/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Users:
    UserDTO, CreateUserRequest

  Balance history:
    SeriesDTO, PointDTO

  Wallet:
    MutationRequest, TransactionDTO

  Documents:
    DocumentDTO, CreateDocumentRequest

BALANCE ENCODING:
  Amounts cross the wire as float64 for chart consumption. The domain
  keeps decimals internally; only the JSON boundary rounds.

SEE ALSO:
  - handlers.go: Uses these types
  - history/series.go: Source of chart points
*/
package api

import (
	"time"

	"github.com/ledgerline/billing-engine/billing"
	"github.com/ledgerline/billing-engine/history"
)

// =============================================================================
// USER TYPES
// =============================================================================

// UserDTO represents an account holder in API responses.
type UserDTO struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Balance   float64 `json:"balance"`
	Currency  string  `json:"currency"`
	CreatedAt string  `json:"created_at,omitempty"`
}

// CreateUserRequest is the request to create a user.
type CreateUserRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toUserDTO(u billing.User) UserDTO {
	balance, _ := u.Balance.Value.Float64()
	return UserDTO{
		ID:        string(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		Balance:   balance,
		Currency:  u.Balance.Currency,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// BALANCE HISTORY TYPES
// =============================================================================

// PointDTO is one chart point.
type PointDTO struct {
	Label   string  `json:"label"`
	Balance float64 `json:"balance"`
}

// SeriesDTO is the chart-ready balance history for one user and scale.
// Points is always a JSON array, never null, so chart code can render
// the empty state without a null check.
type SeriesDTO struct {
	UserID string     `json:"user_id"`
	Scale  string     `json:"scale"`
	Empty  bool       `json:"empty"`
	Points []PointDTO `json:"points"`
}

func toSeriesDTO(userID history.UserID, scale history.Scale, points []history.Point) SeriesDTO {
	dtos := make([]PointDTO, len(points))
	for i, p := range points {
		balance, _ := p.Balance.Float64()
		dtos[i] = PointDTO{Label: p.Label, Balance: balance}
	}
	return SeriesDTO{
		UserID: string(userID),
		Scale:  string(scale),
		Empty:  len(points) == 0,
		Points: dtos,
	}
}

// =============================================================================
// WALLET TYPES
// =============================================================================

// MutationRequest is the body of a deposit or withdrawal.
type MutationRequest struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
}

// TransactionDTO represents a ledger transaction in API responses.
type TransactionDTO struct {
	ID              string  `json:"id"`
	Type            string  `json:"type"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	TransactionDate string  `json:"transaction_date"`
	Description     string  `json:"description,omitempty"`
}

func toTransactionDTO(tx history.Transaction) TransactionDTO {
	amount, _ := tx.Amount.Value.Float64()
	return TransactionDTO{
		ID:              string(tx.ID),
		Type:            string(tx.Type),
		Amount:          amount,
		Currency:        tx.Amount.Currency,
		TransactionDate: tx.TransactionDate.Format(time.RFC3339),
		Description:     tx.Description,
	}
}

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// DocumentDTO represents an invoice or bill in API responses.
type DocumentDTO struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	Kind         string  `json:"kind"`
	Counterparty string  `json:"counterparty"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
	DueDate      string  `json:"due_date,omitempty"`
	IssuedAt     string  `json:"issued_at"`
	PaidAt       string  `json:"paid_at,omitempty"`
}

// CreateDocumentRequest is the request to create an invoice or bill.
type CreateDocumentRequest struct {
	UserID       string  `json:"user_id"`
	Kind         string  `json:"kind"`
	Counterparty string  `json:"counterparty"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	DueDate      string  `json:"due_date,omitempty"`
}

func toDocumentDTO(doc billing.Document) DocumentDTO {
	amount, _ := doc.Amount.Value.Float64()
	dto := DocumentDTO{
		ID:           doc.ID,
		UserID:       string(doc.UserID),
		Kind:         string(doc.Kind),
		Counterparty: doc.Counterparty,
		Amount:       amount,
		Currency:     doc.Amount.Currency,
		Status:       string(doc.Status),
		IssuedAt:     doc.IssuedAt.Format(time.RFC3339),
	}
	if doc.DueDate != nil {
		dto.DueDate = doc.DueDate.Format("2006-01-02")
	}
	if doc.PaidAt != nil {
		dto.PaidAt = doc.PaidAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// ERROR TYPE
// =============================================================================

// ErrorResponse is the JSON body for error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
